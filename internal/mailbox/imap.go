package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"slotbot/pkg/logx"
)

// IMAPDialer logs in over implicit TLS.
type IMAPDialer struct {
	Server   string
	Port     int
	Username string
	Password string
	// Timeout bounds the TCP/TLS handshake and each command.
	Timeout   time.Duration
	TLSConfig *tls.Config
	Log       logx.Logger
}

func (d *IMAPDialer) addr() string {
	port := d.Port
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(d.Server, strconv.Itoa(port))
}

func (d *IMAPDialer) Dial(ctx context.Context) (Session, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	nd := &net.Dialer{Timeout: timeout}
	if dl, ok := ctx.Deadline(); ok {
		nd.Deadline = dl
	}

	tlsCfg := d.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: d.Server, MinVersion: tls.VersionTLS12}
	}

	c, err := client.DialWithDialerTLS(nd, d.addr(), tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, d.addr(), err)
	}
	c.Timeout = timeout

	s := &imapSession{c: c}
	// go-imap has no context support; drop the connection on cancel
	s.stop = context.AfterFunc(ctx, func() { _ = c.Terminate() })

	if err := c.Login(d.Username, d.Password); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: login: %w", ErrConnection, err)
	}
	d.Log.Debug("imap connected", logx.String("server", d.Server))
	return s, nil
}

type imapSession struct {
	c    *client.Client
	stop func() bool
}

func (s *imapSession) Select(_ context.Context, mailbox string) error {
	// read-write so fetched messages are marked \Seen by the server
	_, err := s.c.Select(mailbox, false)
	return err
}

func (s *imapSession) SearchUnseen(context.Context) ([]uint32, error) {
	crit := imap.NewSearchCriteria()
	crit.WithoutFlags = []string{imap.SeenFlag}
	return s.c.Search(crit)
}

func (s *imapSession) Fetch(_ context.Context, id uint32) ([]byte, error) {
	seq := new(imap.SeqSet)
	seq.AddNum(id)
	section := &imap.BodySectionName{}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seq, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var (
		raw     []byte
		readErr error
	)
	// drain fully so the fetch goroutine can finish
	for msg := range messages {
		if body := msg.GetBody(section); body != nil && raw == nil && readErr == nil {
			raw, readErr = io.ReadAll(body)
		}
	}
	if err := <-done; err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	if raw == nil {
		return nil, errors.New("server returned no body")
	}
	return raw, nil
}

func (s *imapSession) Close() error {
	if s.stop != nil {
		s.stop()
	}
	err := s.c.Logout()
	if errors.Is(err, client.ErrAlreadyLoggedOut) {
		return nil
	}
	return err
}
