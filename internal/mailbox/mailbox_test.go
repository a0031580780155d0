package mailbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slotbot/internal/clock"
	"slotbot/pkg/logx"
)

var defaultFilter = Filter{From: "noreply@frontdesksuite.com", Subject: "Verify your email"}

func rfc822(from, subject, body string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: jane@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n")
}

const multipartMsg = "From: Front Desk <noreply@frontdesksuite.com>\r\n" +
	"Subject: Verify your email\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Ref 9999</p>\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Booking ref 12345. Your code: 7310\r\n" +
	"--b1--\r\n"

const latin1Msg = "From: =?UTF-8?Q?Front_Desk?= <noreply@frontdesksuite.com>\r\n" +
	"Subject: =?UTF-8?B?VmVyaWZ5IHlvdXIgZW1haWwgbm93?=\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=iso-8859-1\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Votre code: 4821 expire bient=F4t\r\n"

const noContentTypeMsg = "From: noreply@frontdesksuite.com\r\n" +
	"Subject: Verify your email\r\n" +
	"\r\n" +
	"code 5550\r\n"

func TestParseDecodesHeadersAndBody(t *testing.T) {
	m, err := Parse([]byte(latin1Msg))
	require.NoError(t, err)
	require.Equal(t, "Verify your email now", m.Subject)
	require.Contains(t, m.From, "noreply@frontdesksuite.com")
	require.Contains(t, m.From, "Front Desk")
	require.Len(t, m.Bodies, 1)
	require.Contains(t, m.Bodies[0], "bientôt")

	code, ok := m.Code()
	require.True(t, ok)
	require.Equal(t, "4821", code)
}

func TestParseMultipartUsesPlainTextOnly(t *testing.T) {
	m, err := Parse([]byte(multipartMsg))
	require.NoError(t, err)
	require.Len(t, m.Bodies, 1)
	code, ok := m.Code()
	require.True(t, ok)
	require.Equal(t, "7310", code, "html part and 5-digit runs must be ignored")
}

func TestParseWithoutContentType(t *testing.T) {
	m, err := Parse([]byte(noContentTypeMsg))
	require.NoError(t, err)
	code, ok := m.Code()
	require.True(t, ok)
	require.Equal(t, "5550", code)
}

func TestCodePattern(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"Your code: 4821 expires soon", "4821"},
		{"4821", "4821"},
		{"(4821)", "4821"},
		{"ref 12345 then 0042.", "0042"},
		{"no code here", ""},
		{"123 and 12345", ""},
		{"A4821", ""},
	}
	for _, tt := range tests {
		got, _ := Message{Bodies: []string{tt.body}}.Code()
		if got != tt.want {
			t.Fatalf("Code(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestFilterRequiresBothMatches(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"both", Message{From: "noreply@frontdesksuite.com", Subject: "Verify your email now"}, true},
		{"sender only", Message{From: "noreply@frontdesksuite.com", Subject: "Your receipt"}, false},
		{"subject only", Message{From: "other@example.com", Subject: "Verify your email now"}, false},
	}
	for _, tt := range tests {
		if got := defaultFilter.Accepts(tt.msg); got != tt.want {
			t.Fatalf("%s: Accepts = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ---- fake IMAP ----

type fakeSession struct {
	msgs      map[uint32][]byte
	order     []uint32
	selected  string
	fetched   []uint32
	closed    bool
	searchErr error
}

func (s *fakeSession) Select(_ context.Context, mbox string) error {
	s.selected = mbox
	return nil
}

func (s *fakeSession) SearchUnseen(context.Context) ([]uint32, error) {
	return s.order, s.searchErr
}

func (s *fakeSession) Fetch(_ context.Context, id uint32) ([]byte, error) {
	s.fetched = append(s.fetched, id)
	return s.msgs[id], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	sess  *fakeSession
	err   error
	dials int
}

func (d *fakeDialer) Dial(context.Context) (Session, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}

func inbox(raws ...[]byte) *fakeSession {
	s := &fakeSession{msgs: map[uint32][]byte{}}
	for i, r := range raws {
		id := uint32(i + 1)
		s.msgs[id] = r
		s.order = append(s.order, id)
	}
	return s
}

func TestRetrieveRequiresSenderAndSubject(t *testing.T) {
	good := rfc822("noreply@frontdesksuite.com", "Verify your email now", "Your code: 4821 expires soon")
	other := rfc822("other@example.com", "Verify your email now", "Your code: 4821 expires soon")

	sess := inbox(good)
	r := &Retriever{Dialer: &fakeDialer{sess: sess}, Filter: defaultFilter, Log: logx.Nop()}
	code, ok, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "4821", code)
	require.Equal(t, "INBOX", sess.selected)
	require.True(t, sess.closed)

	r.Dialer = &fakeDialer{sess: inbox(other)}
	_, ok, err = r.Retrieve(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRetrieveScansAllQualifyingMessagesInOrder(t *testing.T) {
	sess := inbox(
		rfc822("noreply@frontdesksuite.com", "Your receipt", "code 1111"),
		rfc822("noreply@frontdesksuite.com", "Verify your email", "no digits yet"),
		[]byte("not an email at all"),
		rfc822("noreply@frontdesksuite.com", "Verify your email", "code 2222"),
		rfc822("noreply@frontdesksuite.com", "Verify your email", "code 3333"),
	)
	r := &Retriever{Dialer: &fakeDialer{sess: sess}, Mailbox: "Bookings", Filter: defaultFilter}
	code, ok, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2222", code)
	require.Equal(t, "Bookings", sess.selected)
	require.Equal(t, []uint32{1, 2, 3, 4}, sess.fetched, "stops at first match")
}

func TestRetrieveConnectionErrors(t *testing.T) {
	r := &Retriever{Dialer: &fakeDialer{err: errors.New("connection refused")}, Filter: defaultFilter}
	_, ok, err := r.Retrieve(context.Background())
	require.False(t, ok)
	require.ErrorIs(t, err, ErrConnection)

	sess := inbox()
	sess.searchErr = errors.New("BAD")
	r.Dialer = &fakeDialer{sess: sess}
	_, _, err = r.Retrieve(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	require.True(t, sess.closed, "session must be closed after a failed attempt")
}

type scriptedSource struct {
	results []func() (string, bool, error)
	calls   int
}

func (s *scriptedSource) Retrieve(context.Context) (string, bool, error) {
	s.calls++
	if s.calls <= len(s.results) {
		return s.results[s.calls-1]()
	}
	return "", false, nil
}

func TestPollerRetriesThroughErrors(t *testing.T) {
	src := &scriptedSource{results: []func() (string, bool, error){
		func() (string, bool, error) { return "", false, ErrConnection },
		func() (string, bool, error) { return "", false, nil },
		func() (string, bool, error) { return "4821", true, nil },
	}}
	fc := clock.NewFake(time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC))
	p := &Poller{Source: src, Interval: time.Second, Timeout: time.Minute, Clock: fc}

	code, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "4821", code)
	require.Equal(t, 3, src.calls)
	require.Equal(t, []time.Duration{time.Second, time.Second}, fc.Sleeps())
}

func TestPollerTimeout(t *testing.T) {
	src := &scriptedSource{}
	fc := clock.NewFake(time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC))
	p := &Poller{Source: src, Interval: time.Second, Timeout: 3 * time.Second, Clock: fc}

	_, err := p.Await(context.Background())
	require.ErrorIs(t, err, ErrCodeTimeout)
	require.Equal(t, 4, src.calls)
	require.LessOrEqual(t, fc.Now().Sub(time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)), 3*time.Second)
}

func TestPollerUnboundedUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{}
	for i := 0; i < 50; i++ {
		src.results = append(src.results, func() (string, bool, error) { return "", false, nil })
	}
	src.results = append(src.results, func() (string, bool, error) { cancel(); return "", false, nil })

	p := &Poller{Source: src, Interval: time.Minute, Clock: clock.NewFake(time.Now())}
	_, err := p.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 51, src.calls)
}

func TestConnErrWrapping(t *testing.T) {
	err := connErr("dial", errors.New("boom"))
	require.ErrorIs(t, err, ErrConnection)
	require.True(t, strings.HasPrefix(err.Error(), "dial: "))

	err = connErr("select", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrConnection)
}
