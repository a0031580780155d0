package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	// registers non-UTF-8 charsets for header and body decoding
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// maxPartSize caps how much of one body part is read.
const maxPartSize = 1 << 20

var codePattern = regexp.MustCompile(`\b\d{4}\b`)

// Message is the decoded view of one email.
type Message struct {
	From    string
	Subject string
	// Bodies are the text/plain parts in MIME order.
	Bodies []string
}

// Parse decodes RFC 5322 bytes. Encoded words in From/Subject and
// transfer/charset encodings in bodies are decoded.
func Parse(raw []byte) (Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	var m Message
	if m.Subject, err = mr.Header.Subject(); err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("decode subject: %w", err)
	}
	if m.From, err = mr.Header.Text("From"); err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("decode from: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return m, fmt.Errorf("read part: %w", err)
		}
		var ct string
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			if disp, _, _ := h.ContentDisposition(); strings.EqualFold(disp, "attachment") {
				continue
			}
			ct, _, _ = h.ContentType()
		default:
			continue
		}
		// a single-part message without Content-Type is text/plain
		if ct != "" && !strings.EqualFold(ct, "text/plain") {
			continue
		}
		b, err := io.ReadAll(io.LimitReader(p.Body, maxPartSize))
		if err != nil {
			return m, fmt.Errorf("read body: %w", err)
		}
		m.Bodies = append(m.Bodies, string(b))
	}
	return m, nil
}

// Code returns the first standalone 4-digit run across the text parts.
func (m Message) Code() (string, bool) {
	for _, body := range m.Bodies {
		if c := codePattern.FindString(body); c != "" {
			return c, true
		}
	}
	return "", false
}

// Filter accepts a message only if both substrings match.
type Filter struct {
	From    string
	Subject string
}

func (f Filter) Accepts(m Message) bool {
	return strings.Contains(m.From, f.From) && strings.Contains(m.Subject, f.Subject)
}
