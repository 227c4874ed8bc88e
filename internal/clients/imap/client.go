package imap

import (
	"context"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	// decodes non UTF-8 headers and bodies
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	inbox          = "INBOX"
	dialTimeout    = 30 * time.Second
	commandTimeout = time.Minute
	maxAttachment  = 10 << 20
)

var ErrAuth = errors.New("imap authentication failed")

type config interface {
	IMAPServer() string
}

type Credentials struct {
	Address  string
	Password string
}

type Header struct {
	UID      uint32
	Subject  string
	From     string
	FromName string
	Date     time.Time
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Mail struct {
	Header
	Attachments []Attachment
}

type Client struct {
	server string
}

func New(config config) *Client {
	return &Client{server: config.IMAPServer()}
}

type session struct {
	conn *client.Client
	stop func() bool
}

// dial logs in. The connection is torn down when ctx is done.
func (c *Client) dial(ctx context.Context, creds Credentials) (*session, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := client.DialWithDialerTLS(dialer, c.server, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", c.server)
	}
	conn.Timeout = commandTimeout

	if err = conn.Login(creds.Address, creds.Password); err != nil {
		err = loginError(err, isClosed(conn))
		_ = conn.Logout()
		logger.Warn("imap login failed", zap.String("server", c.server), zap.Error(err))
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Terminate()
	})
	return &session{conn: conn, stop: stop}, nil
}

func isClosed(conn *client.Client) bool {
	select {
	case <-conn.LoggedOut():
		return true
	default:
		return false
	}
}

// loginError tells a rejected login apart from a broken connection. The server
// answers bad credentials with NO or BAD and keeps the connection open.
func loginError(err error, closed bool) error {
	var netErr net.Error
	if closed || errors.As(err, &netErr) || errors.Is(err, client.ErrLoginDisabled) {
		return errors.Wrap(err, "imap login")
	}
	return ErrAuth
}

func (s *session) logout() {
	s.stop()
	if err := s.conn.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		logger.Warn("imap logout", zap.Error(err))
	}
}

// Verify checks that the credentials can log in.
func (c *Client) Verify(ctx context.Context, creds Credentials) error {
	sess, err := c.dial(ctx, creds)
	if err != nil {
		return err
	}
	sess.logout()
	return nil
}

// FetchUnseen returns the newest unseen inbox messages accepted by match, with
// their PDF attachments. Messages are fetched with PEEK so they stay unseen
// until MarkSeen.
func (c *Client) FetchUnseen(ctx context.Context, creds Credentials, limit int, match func(Header) bool) ([]Mail, error) {
	sess, err := c.dial(ctx, creds)
	if err != nil {
		return nil, err
	}
	defer sess.logout()
	conn := sess.conn

	if _, err = conn.Select(inbox, true); err != nil {
		return nil, errors.Wrap(err, "select inbox")
	}
	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, errors.Wrap(err, "search unseen")
	}
	if len(uids) == 0 {
		return nil, nil
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	headers, err := fetchHeaders(conn, uids)
	if err != nil {
		return nil, err
	}
	var matched []uint32
	byUID := make(map[uint32]Header, len(headers))
	for _, h := range headers {
		if match == nil || match(h) {
			matched = append(matched, h.UID)
			byUID[h.UID] = h
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	return fetchBodies(conn, matched, byUID)
}

func fetchHeaders(conn *client.Client, uids []uint32) ([]Header, error) {
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)

	msgs := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqset, []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchUid}, msgs)
	}()

	var res []Header
	for msg := range msgs {
		if msg.Envelope == nil {
			continue
		}
		h := Header{UID: msg.Uid, Subject: msg.Envelope.Subject, Date: msg.Envelope.Date}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			h.From = from.Address()
			h.FromName = from.PersonalName
		}
		res = append(res, h)
	}
	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "fetch headers")
	}
	return res, nil
}

func fetchBodies(conn *client.Client, uids []uint32, headers map[uint32]Header) ([]Mail, error) {
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)
	section := &goimap.BodySectionName{Peek: true}

	msgs := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqset, []goimap.FetchItem{goimap.FetchUid, section.FetchItem()}, msgs)
	}()

	var res []Mail
	for msg := range msgs {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		attachments, err := pdfAttachments(body)
		if err != nil {
			logger.Warn("cannot read message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		res = append(res, Mail{Header: headers[msg.Uid], Attachments: attachments})
	}
	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "fetch bodies")
	}
	return res, nil
}

func pdfAttachments(r io.Reader) ([]Attachment, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse message")
	}
	defer func() {
		_ = mr.Close()
	}()

	var res []Attachment
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, errors.Wrap(err, "next part")
		}

		var filename, contentType string
		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			filename, _ = h.Filename()
			contentType, _, _ = h.ContentType()
		case *mail.InlineHeader:
			contentType, _, _ = h.ContentType()
		}
		if !isPDF(filename, contentType) {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part.Body, maxAttachment))
		if err != nil {
			return res, errors.Wrap(err, "read attachment")
		}
		res = append(res, Attachment{Filename: filename, ContentType: contentType, Data: data})
	}
	return res, nil
}

func isPDF(filename, contentType string) bool {
	return contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// MarkSeen flags the given messages as read.
func (c *Client) MarkSeen(ctx context.Context, creds Credentials, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	sess, err := c.dial(ctx, creds)
	if err != nil {
		return err
	}
	defer sess.logout()
	conn := sess.conn

	if _, err = conn.Select(inbox, false); err != nil {
		return errors.Wrap(err, "select inbox")
	}
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	return errors.Wrap(conn.UidStore(seqset, item, []interface{}{goimap.SeenFlag}, nil), "mark seen")
}
