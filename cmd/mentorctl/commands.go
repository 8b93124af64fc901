package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mentormatch/internal/app/realtime"
	"mentormatch/internal/app/user"
	"mentormatch/internal/client"
	"mentormatch/internal/pkg/auth/jwt"
	"mentormatch/internal/pkg/backoff"
)

const defaultURL = "ws://localhost:8080/ws"

// connectionFlags are shared by every command that opens a connection.
type connectionFlags struct {
	url     string
	token   string
	timeout time.Duration
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", defaultURL, "Realtime websocket endpoint")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("MENTORMATCH_TOKEN"), "Identity token (default $MENTORMATCH_TOKEN)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "How long to wait for the connection")
}

// dial connects a client and waits until it is connected or has given up.
func (f *connectionFlags) dial(ctx context.Context) (*client.Client, error) {
	c := client.New(client.Options{URL: f.url})

	states := make(chan client.StateChange, 16)
	unsubscribe := c.Subscribe(client.EventStateChange, func(data any) {
		select {
		case states <- data.(client.StateChange):
		default:
		}
	})
	defer unsubscribe()

	c.Connect(f.token)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for {
		select {
		case change := <-states:
			switch {
			case change.State == client.StateConnected:
				return c, nil
			case errors.Is(change.Err, client.ErrMaxRetries):
				c.Disconnect()
				return nil, fmt.Errorf("connect %s: %w", f.url, c.LastError())
			}
		case <-ctx.Done():
			err := c.LastError()
			c.Disconnect()
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("connect %s: %w", f.url, err)
		}
	}
}

func buildTokenCmd() *cobra.Command {
	var (
		identity user.Identity
		secret   string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an identity token signed with JWT_SECRET",
		Long: `Mint an identity token for local testing.

The token is signed with --secret or $JWT_SECRET. The server only accepts it
if an account with the same id exists, unless it runs without a user store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.ID == "" {
				return errors.New("--id is required")
			}
			token, err := jwt.GenerateToken(identity.Payload(), secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.ID, "id", "", "User id")
	cmd.Flags().StringVar(&identity.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&identity.Email, "email", "", "Email")
	cmd.Flags().StringVar(&identity.Role, "role", user.RoleMentee, "Role (mentor, mentee)")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (default $JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", jwt.IdentityExpiration, "Token lifetime")
	return cmd
}

func buildWatchCmd() *cobra.Command {
	var (
		conn    connectionFlags
		session string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every realtime event until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, &conn, realtime.SessionID(session))
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "Session id to join")
	return cmd
}

func runWatch(cmd *cobra.Command, conn *connectionFlags, session realtime.SessionID) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := conn.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	out := cmd.OutOrStdout()
	for _, event := range []string{
		realtime.EventPresenceSnapshot,
		realtime.EventPresenceUpdate,
		realtime.EventSessionActivity,
		realtime.EventTypingIndicator,
		realtime.EventSessionHistory,
		realtime.EventNotification,
		realtime.EventError,
	} {
		c.Subscribe(event, func(data any) { printEvent(out, event, data) })
	}
	c.Subscribe(client.EventStateChange, func(data any) {
		change := data.(client.StateChange)
		if change.Err != nil {
			fmt.Fprintf(out, "# %s (%v)\n", change.State, change.Err)
			return
		}
		fmt.Fprintf(out, "# %s\n", change.State)
	})

	if session != "" {
		if err := c.JoinSession(session); err != nil {
			return err
		}
	}

	<-ctx.Done()
	return nil
}

func printEvent(out io.Writer, event string, data any) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		raw, _ = json.Marshal(data)
	}
	fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), event, raw)
}

func buildSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one realtime event",
	}
	cmd.AddCommand(
		buildSendActivityCmd(),
		buildSendTypingCmd(),
		buildSendPresenceCmd(),
	)
	return cmd
}

// sendOnce connects, runs send, and lets the frame flush before closing.
func sendOnce(cmd *cobra.Command, conn *connectionFlags, send func(*client.Client) error) error {
	c, err := conn.dial(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Disconnect()

	if err := send(c); err != nil {
		return err
	}
	if err := backoff.Sleep(cmd.Context(), 100*time.Millisecond); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "sent")
	return nil
}

func buildSendActivityCmd() *cobra.Command {
	var (
		conn    connectionFlags
		session string
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "activity [content]",
		Short: "Post an activity to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			activity := realtime.Activity{Type: realtime.ActivityType(kind), Content: args[0]}
			if !activity.Type.Valid() {
				return fmt.Errorf("unknown activity type %q", kind)
			}
			if session == "" {
				return errors.New("--session is required")
			}
			return sendOnce(cmd, &conn, func(c *client.Client) error {
				return c.SendActivity(realtime.SessionID(session), activity)
			})
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "Session id")
	cmd.Flags().StringVar(&kind, "type", string(realtime.ActivityNote), "Activity type (note, code, question, feedback, resource)")
	return cmd
}

func buildSendTypingCmd() *cobra.Command {
	var (
		conn      connectionFlags
		session   string
		target    string
		typingCtx string
		stopped   bool
	)
	cmd := &cobra.Command{
		Use:   "typing",
		Short: "Send a typing indicator to a session or a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if session == "" && target == "" {
				return errors.New("--session or --target is required")
			}
			return sendOnce(cmd, &conn, func(c *client.Client) error {
				return c.SendTyping(realtime.SessionID(session), target, realtime.TypingContext(typingCtx), !stopped)
			})
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "Session id")
	cmd.Flags().StringVar(&target, "target", "", "Target user id when no session is given")
	cmd.Flags().StringVar(&typingCtx, "context", string(realtime.TypingChat), "Typing context (chat, feedback, notes)")
	cmd.Flags().BoolVar(&stopped, "stop", false, "Send isTyping=false")
	return cmd
}

func buildSendPresenceCmd() *cobra.Command {
	var (
		conn     connectionFlags
		status   string
		activity string
		details  string
	)
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Update your presence status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !realtime.Status(status).Settable() {
				return fmt.Errorf("status must be online, away or busy, got %q", status)
			}
			var current *realtime.CurrentActivity
			if activity != "" {
				current = &realtime.CurrentActivity{Type: activity, Details: details}
			}
			return sendOnce(cmd, &conn, func(c *client.Client) error {
				return c.UpdatePresence(realtime.Status(status), current)
			})
		},
	}
	conn.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "Status (online, away, busy)")
	cmd.Flags().StringVar(&activity, "activity", "", "Current activity type")
	cmd.Flags().StringVar(&details, "details", "", "Current activity details")
	return cmd
}
