package mailbox

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/entity/user"
	"max.ks1230/expenses-bot/internal/logger"
)

type autoCheckStorage interface {
	UsersWithEmailAutoCheck(ctx context.Context) ([]user.Record, error)
}

type scanner interface {
	Scan(ctx context.Context, u user.Record) ([]expense.Candidate, error)
}

type deliverer interface {
	DeliverEmailCandidates(ctx context.Context, userID int64, candidates []expense.Candidate) error
}

type pollConfig interface {
	PollInterval() time.Duration
}

// Poller scans the mailboxes of users with auto-check on, one user at a time.
type Poller struct {
	users    autoCheckStorage
	scanner  scanner
	delivery deliverer
	interval time.Duration
}

func NewPoller(config pollConfig, users autoCheckStorage, scanner scanner, delivery deliverer) (*Poller, error) {
	if config.PollInterval() <= 0 {
		return nil, errors.New("email poll interval must be positive")
	}
	return &Poller{
		users:    users,
		scanner:  scanner,
		delivery: delivery,
		interval: config.PollInterval(),
	}, nil
}

func (p *Poller) Poll(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	firstTick := make(chan struct{}, 1)
	firstTick <- struct{}{}

	logger.Info("Start polling mailboxes", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stop polling mailboxes")
			return
		// fake first tick to scan right after startup
		case <-firstTick:
			p.pollOnce(ctx)
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pollMailboxes")
	defer span.Finish()

	users, err := p.users.UsersWithEmailAutoCheck(ctx)
	if err != nil {
		ext.Error.Set(span, true)
		logger.Error("cannot list users for email check", zap.Error(err))
		return
	}
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		p.pollUser(ctx, u)
	}
}

func (p *Poller) pollUser(ctx context.Context, u user.Record) {
	candidates, err := p.scanner.Scan(ctx, u)
	if errors.Is(err, ErrScanInProgress) {
		logger.Info("email scan already running", zap.Int64("userID", u.ID))
		return
	}
	if err != nil {
		logger.Error("email scan failed", zap.Int64("userID", u.ID), zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		return
	}
	if err = p.delivery.DeliverEmailCandidates(ctx, u.ID, candidates); err != nil {
		logger.Error("cannot deliver email candidates", zap.Int64("userID", u.ID), zap.Error(err))
	}
}
