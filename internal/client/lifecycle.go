package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mentormatch/internal/pkg/backoff"
	"mentormatch/internal/pkg/logx"
)

// DefaultMaxAttempts bounds consecutive failed connection attempts.
const DefaultMaxAttempts = 5

var (
	// ErrNotConnected is returned by Send outside the connected state.
	ErrNotConnected = errors.New("client not connected")

	// ErrMaxRetries is reported once automatic reconnection has given up.
	ErrMaxRetries = errors.New("maximum reconnection attempts reached")
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transport is one established connection.
type Transport interface {
	Read() ([]byte, error)
	Write(frame []byte) error
	Close() error
}

// Dialer opens a Transport to url authenticated with token.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Transport, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	URL    string
	Dialer Dialer

	// Policy defaults to backoff.DefaultPolicy.
	Policy *backoff.Policy

	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int

	// DialTimeout bounds a single attempt. Zero means 10s.
	DialTimeout time.Duration

	// OnMessage receives every inbound frame on the read goroutine, tagged
	// with the generation of the connection it was read from. Frames of a
	// connection that was already torn down are never passed on; Current
	// tells a receiver whether conn is still live while it handles one.
	OnMessage func(conn uint64, frame []byte)

	// OnStateChange is called after every transition, outside internal locks.
	OnStateChange func(state State, err error)
}

// Manager drives the connection state machine:
// disconnected → connecting → connected → (disconnecting | error) → disconnected.
// Consecutive failed attempts are counted; after MaxAttempts the manager stays
// disconnected until Connect is called again. Disconnect cancels everything
// pending immediately.
type Manager struct {
	opts   ManagerOptions
	policy backoff.Policy

	mu        sync.Mutex
	state     State
	retries   int
	lastErr   error
	token     string
	gen       uint64
	timer     *time.Timer
	cancel    context.CancelFunc
	transport Transport

	logger zerolog.Logger
}

type transition struct {
	state State
	err   error
}

// NewManager returns a disconnected Manager.
func NewManager(opts ManagerOptions) *Manager {
	policy := backoff.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	return &Manager{
		opts:   opts,
		policy: policy,
		state:  StateDisconnected,
		logger: logx.Component("client_lifecycle"),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RetryCount returns the number of consecutive failed attempts.
func (m *Manager) RetryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Current reports whether conn, as passed to OnMessage, is still the live
// connection. It turns false as soon as that connection is torn down.
func (m *Manager) Current(conn uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return conn == m.gen && m.transport != nil
}

// LastError returns the most recent connection error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Connect starts connecting with token and resets the retry counter. It is a
// no-op while already connecting or connected with the same token.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	if (m.state == StateConnecting || m.state == StateConnected) && token == m.token {
		m.mu.Unlock()
		return
	}

	var changes []transition
	changes = m.teardownLocked(changes)

	m.token = token
	m.retries = 0
	m.lastErr = nil
	gen := m.gen
	changes = m.setLocked(changes, StateConnecting, nil)
	m.mu.Unlock()

	m.emit(changes)
	go m.attempt(gen)
}

// Disconnect closes the connection and cancels any pending retry. The manager
// stays disconnected until Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateDisconnected && m.timer == nil && m.cancel == nil {
		m.mu.Unlock()
		return
	}

	var changes []transition
	changes = m.setLocked(changes, StateDisconnecting, nil)
	changes = m.teardownLocked(changes)
	m.token = ""
	changes = m.setLocked(changes, StateDisconnected, nil)
	m.mu.Unlock()

	m.emit(changes)
}

// Send writes one frame on the current connection.
func (m *Manager) Send(frame []byte) error {
	m.mu.Lock()
	t := m.transport
	m.mu.Unlock()

	if t == nil {
		return ErrNotConnected
	}
	return t.Write(frame)
}

// teardownLocked invalidates every goroutine and timer of the current
// generation and closes the transport.
func (m *Manager) teardownLocked(changes []transition) []transition {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}
	return changes
}

func (m *Manager) setLocked(changes []transition, s State, err error) []transition {
	if m.state == s && err == nil {
		return changes
	}
	m.state = s
	return append(changes, transition{state: s, err: err})
}

func (m *Manager) emit(changes []transition) {
	for _, c := range changes {
		ev := m.logger.Debug().Str("state", c.state.String())
		if c.err != nil {
			ev = ev.Err(c.err)
		}
		ev.Msg("Connection state changed")

		if m.opts.OnStateChange != nil {
			m.opts.OnStateChange(c.state, c.err)
		}
	}
}

func (m *Manager) attempt(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.DialTimeout)
	m.cancel = cancel
	token := m.token
	changes := m.setLocked(nil, StateConnecting, nil)
	m.mu.Unlock()
	m.emit(changes)

	t, err := m.opts.Dialer.Dial(ctx, m.opts.URL, token)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}
	m.cancel = nil

	if err != nil {
		changes = m.failLocked(nil, gen, err)
		m.mu.Unlock()
		m.emit(changes)
		return
	}

	m.transport = t
	m.retries = 0
	m.lastErr = nil
	changes = m.setLocked(nil, StateConnected, nil)
	m.mu.Unlock()
	m.emit(changes)

	m.readLoop(gen, t)
}

// failLocked records a failed attempt and either schedules the next one or
// gives up.
func (m *Manager) failLocked(changes []transition, gen uint64, err error) []transition {
	m.retries++
	m.lastErr = err
	changes = m.setLocked(changes, StateError, err)

	if m.retries >= m.opts.MaxAttempts {
		m.logger.Warn().Err(err).Int("attempts", m.retries).Msg("Giving up reconnecting")
		m.gen++
		return m.setLocked(changes, StateDisconnected, ErrMaxRetries)
	}

	delay := m.policy.Delay(m.retries)
	m.logger.Debug().Err(err).Int("attempt", m.retries).Dur("retry_in", delay).Msg("Connection attempt failed")
	m.timer = time.AfterFunc(delay, func() { m.attempt(gen) })
	return changes
}

func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		frame, err := t.Read()
		if err != nil {
			m.dropped(gen, err)
			return
		}
		if !m.Current(gen) {
			return
		}
		if m.opts.OnMessage != nil {
			m.opts.OnMessage(gen, frame)
		}
	}
}

// dropped handles a connection closed by the remote side. The retry counter
// is not touched; only failed attempts count.
func (m *Manager) dropped(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	_ = m.transport.Close()
	m.transport = nil
	m.lastErr = err

	changes := m.setLocked(nil, StateError, err)
	changes = m.setLocked(changes, StateDisconnected, nil)

	delay := m.policy.Delay(1)
	m.timer = time.AfterFunc(delay, func() { m.attempt(gen) })
	m.mu.Unlock()
	m.emit(changes)

	m.logger.Info().Err(err).Dur("retry_in", delay).Msg("Connection lost, reconnecting")
}
