package mailbox

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/clients/imap"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/entity/user"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	emailConfidence = 0.6
	maxDescription  = 100
)

var (
	ErrScanInProgress = errors.New("email scan already in progress")
	ErrNotConnected   = errors.New("email not connected")
)

type mailClient interface {
	FetchUnseen(ctx context.Context, creds imap.Credentials, limit int, match func(imap.Header) bool) ([]imap.Mail, error)
	MarkSeen(ctx context.Context, creds imap.Credentials, uids []uint32) error
}

type textExtractor interface {
	Text(data []byte) (string, error)
}

type usersStorage interface {
	TouchEmailChecked(ctx context.Context, id int64, at time.Time) error
}

type appConfig interface {
	BaseCurrency() string
	Location() *time.Location
}

type mailConfig interface {
	FetchLimit() int
}

type Scanner struct {
	mail     mailClient
	pdf      textExtractor
	users    usersStorage
	catalog  *expense.Catalog
	currency string
	loc      *time.Location
	limit    int
	now      func() time.Time

	mu      sync.Mutex
	running map[int64]struct{}
}

func NewScanner(app appConfig, mail mailConfig, client mailClient, pdf textExtractor,
	users usersStorage, catalog *expense.Catalog) *Scanner {
	return &Scanner{
		mail:     client,
		pdf:      pdf,
		users:    users,
		catalog:  catalog,
		currency: app.BaseCurrency(),
		loc:      app.Location(),
		limit:    mail.FetchLimit(),
		now:      time.Now,
		running:  make(map[int64]struct{}),
	}
}

func (s *Scanner) acquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[userID]; busy {
		return false
	}
	s.running[userID] = struct{}{}
	return true
}

func (s *Scanner) release(userID int64) {
	s.mu.Lock()
	delete(s.running, userID)
	s.mu.Unlock()
}

// Scan looks through the user's unseen invoice mail and turns every PDF with
// a recognizable total into a candidate. Scanned messages are marked as seen.
func (s *Scanner) Scan(ctx context.Context, u user.Record) ([]expense.Candidate, error) {
	if !u.EmailConnected() {
		return nil, ErrNotConnected
	}
	if !s.acquire(u.ID) {
		return nil, ErrScanInProgress
	}
	defer s.release(u.ID)

	span, ctx := opentracing.StartSpanFromContext(ctx, "mailbox.Scan")
	defer span.Finish()
	logger.Info("Email scan - start", zap.Int64("userID", u.ID))

	creds := imap.Credentials{Address: u.EmailAddress, Password: u.EmailAppPassword}
	mails, err := s.mail.FetchUnseen(ctx, creds, s.limit, looksLikeInvoice)
	if err != nil {
		ext.Error.Set(span, true)
		return nil, errors.Wrap(err, "fetch invoices")
	}

	var (
		candidates []expense.Candidate
		seen       []uint32
	)
	for _, m := range mails {
		if len(m.Attachments) == 0 {
			continue
		}
		seen = append(seen, m.UID)
		emailsScanned.Inc()
		if c, ok := s.candidate(m); ok {
			candidates = append(candidates, c)
		}
	}

	if err = s.mail.MarkSeen(ctx, creds, seen); err != nil {
		logger.Warn("cannot mark invoices as seen", zap.Int64("userID", u.ID), zap.Error(err))
	}
	if err = s.users.TouchEmailChecked(ctx, u.ID, s.now()); err != nil {
		logger.Warn("cannot update last email check", zap.Int64("userID", u.ID), zap.Error(err))
	}
	logger.Info("Email scan - end", zap.Int64("userID", u.ID),
		zap.Int("scanned", len(seen)), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

func (s *Scanner) candidate(m imap.Mail) (expense.Candidate, bool) {
	for _, a := range m.Attachments {
		text, err := s.pdf.Text(a.Data)
		if err != nil {
			logger.Warn("cannot read invoice pdf", zap.Uint32("uid", m.UID),
				zap.String("file", a.Filename), zap.Error(err))
			continue
		}
		total, ok := totalFrom(text)
		if !ok {
			continue
		}

		category := s.catalog.Match(m.Subject + " " + m.FromName)
		if category.Key == expense.OtherKey {
			category = s.catalog.Match(text)
		}
		spentAt := m.Date
		if spentAt.IsZero() {
			spentAt = s.now()
		}

		c := expense.NewCandidate(total, currencyFrom(text, s.currency), category, spentAt.In(s.loc))
		c.Source = expense.SourceEmail
		c.Merchant = sender(m.Header)
		c.Description = clip(strings.TrimSpace(m.Subject), maxDescription)
		c.OriginalMessage = m.Subject
		c.Confidence = emailConfidence
		return c, true
	}
	return expense.Candidate{}, false
}

func sender(h imap.Header) string {
	if h.FromName != "" {
		return h.FromName
	}
	if name, _, ok := strings.Cut(h.From, "@"); ok {
		return name
	}
	return h.From
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
