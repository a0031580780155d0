// Package mailbox fetches the one-time confirmation code from an IMAP inbox.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbot/internal/clock"
	"slotbot/pkg/logx"
)

var (
	// ErrConnection marks a failed attempt to reach or talk to the server.
	// Callers retry with a fresh connection.
	ErrConnection = errors.New("mailbox connection error")
	// ErrCodeTimeout means no code arrived within the poll timeout.
	ErrCodeTimeout = errors.New("timed out waiting for confirmation code")
)

// Dialer opens one authenticated session.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is one logged-in connection. Message ids are sequence numbers as
// returned by the server.
type Session interface {
	Select(ctx context.Context, mailbox string) error
	SearchUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, id uint32) ([]byte, error)
	Close() error
}

// Retriever performs one retrieval attempt per call on a fresh connection.
type Retriever struct {
	Dialer  Dialer
	Mailbox string
	Filter  Filter
	Log     logx.Logger
}

// Retrieve returns the first code found across all qualifying unseen
// messages, in server order. ok is false when none qualifies.
func (r *Retriever) Retrieve(ctx context.Context) (code string, ok bool, err error) {
	sess, err := r.Dialer.Dial(ctx)
	if err != nil {
		return "", false, connErr("dial", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.Log.Debug("mailbox logout failed", logx.Err(cerr))
		}
	}()

	mbox := r.Mailbox
	if mbox == "" {
		mbox = "INBOX"
	}
	if err := sess.Select(ctx, mbox); err != nil {
		return "", false, connErr("select "+mbox, err)
	}
	ids, err := sess.SearchUnseen(ctx)
	if err != nil {
		return "", false, connErr("search", err)
	}
	r.Log.Debug("unseen messages", logx.Int("count", len(ids)))

	for _, id := range ids {
		raw, err := sess.Fetch(ctx, id)
		if err != nil {
			return "", false, connErr(fmt.Sprintf("fetch %d", id), err)
		}
		msg, err := Parse(raw)
		if err != nil {
			r.Log.Warn("skipping unparsable message", logx.Int64("id", int64(id)), logx.Err(err))
			continue
		}
		if !r.Filter.Accepts(msg) {
			continue
		}
		if code, ok := msg.Code(); ok {
			return code, true, nil
		}
		r.Log.Debug("qualifying message has no code", logx.Int64("id", int64(id)))
	}
	return "", false, nil
}

func connErr(op string, err error) error {
	if errors.Is(err, ErrConnection) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

// CodeSource is satisfied by *Retriever.
type CodeSource interface {
	Retrieve(ctx context.Context) (string, bool, error)
}

// Poller calls a CodeSource until a code arrives. Per-attempt errors are
// logged and the next tick retries.
type Poller struct {
	Source   CodeSource
	Interval time.Duration
	// Timeout of zero waits forever.
	Timeout time.Duration
	Clock   clock.Clock
	Log     logx.Logger
}

func (p *Poller) Await(ctx context.Context) (string, error) {
	c := p.Clock
	if c == nil {
		c = clock.Real{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	start := c.Now()

	for attempt := 1; ; attempt++ {
		code, ok, err := p.Source.Retrieve(ctx)
		switch {
		case ok:
			p.Log.Info("confirmation code received", logx.Int("attempt", attempt))
			return code, nil
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.Log.Warn("confirmation code attempt failed", logx.Int("attempt", attempt), logx.Err(err))
		default:
			p.Log.Info("waiting for confirmation code", logx.Int("attempt", attempt))
		}

		if p.Timeout > 0 && c.Now().Sub(start)+interval > p.Timeout {
			return "", fmt.Errorf("after %s: %w", p.Timeout, ErrCodeTimeout)
		}
		if err := c.Sleep(ctx, interval); err != nil {
			return "", err
		}
	}
}
