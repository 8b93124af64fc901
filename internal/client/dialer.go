package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mentormatch/internal/pkg/resp"
)

const writeWait = 10 * time.Second

// HandshakeError is returned when the server refuses the websocket handshake,
// e.g. for a missing or invalid token.
type HandshakeError struct {
	StatusCode int
	Code       int
	Reason     string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake rejected (HTTP %d, code %d): %s", e.StatusCode, e.Code, e.Reason)
}

// WebSocketDialer dials the realtime endpoint with gorilla/websocket, sending
// the token as a bearer Authorization header.
type WebSocketDialer struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (d WebSocketDialer) Dial(ctx context.Context, url, token string) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, res, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && res != nil {
			return nil, handshakeError(res)
		}
		return nil, err
	}

	return &wsTransport{conn: conn}, nil
}

func handshakeError(res *http.Response) *HandshakeError {
	defer res.Body.Close()

	herr := &HandshakeError{StatusCode: res.StatusCode, Reason: http.StatusText(res.StatusCode)}

	var body resp.JSONResponse
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		herr.Code = body.Code
		herr.Reason = body.Message
	}
	return herr
}

type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

func (t *wsTransport) Read() ([]byte, error) {
	for {
		kind, frame, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return frame, nil
		}
	}
}

func (t *wsTransport) Write(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}
