package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	monthKeyLayout = "2006-01"
	monthOption    = "stats:month:"
	yearOption     = "stats:year:"
)

type expensesStorage interface {
	SumByCategory(ctx context.Context, userID int64, from, to time.Time) ([]expense.CategoryTotal, error)
	ListExpenses(ctx context.Context, userID int64, from, to time.Time, limit int) ([]expense.Record, error)
}

type reportCache interface {
	CacheReport(userID int64, option string, report string) error
	GetReport(userID int64, option string) (string, error)
	InvalidateCache(userID int64, options []string) error
}

type config interface {
	BaseCurrency() string
	Location() *time.Location
}

type Generator struct {
	storage  expensesStorage
	cache    reportCache
	currency string
	loc      *time.Location
	now      func() time.Time
}

func NewGenerator(config config, storage expensesStorage, cache reportCache) *Generator {
	return &Generator{
		storage:  storage,
		cache:    cache,
		currency: config.BaseCurrency(),
		loc:      config.Location(),
		now:      time.Now,
	}
}

// MonthlyReport is the by-category breakdown of one calendar month.
type MonthlyReport struct {
	Month    time.Time               `json:"month"`
	Currency string                  `json:"currency"`
	Rows     []expense.CategoryTotal `json:"rows"`
	Total    decimal.Decimal         `json:"total"`
	Count    int                     `json:"count"`
}

// YearlyReport holds the total of every month of a calendar year.
type YearlyReport struct {
	Year     int                 `json:"year"`
	Currency string              `json:"currency"`
	Months   [12]decimal.Decimal `json:"months"`
	Total    decimal.Decimal     `json:"total"`
	Count    int                 `json:"count"`
}

func (g *Generator) monthBounds(at time.Time) (time.Time, time.Time) {
	start := now.With(at.In(g.loc)).BeginningOfMonth()
	return start, start.AddDate(0, 1, 0)
}

func (g *Generator) yearBounds(at time.Time) (time.Time, time.Time) {
	start := now.With(at.In(g.loc)).BeginningOfYear()
	return start, start.AddDate(1, 0, 0)
}

func monthKey(month time.Time) string {
	return monthOption + month.Format(monthKeyLayout)
}

func yearKey(year int) string {
	return fmt.Sprintf("%s%d", yearOption, year)
}

// CurrentMonth reports the month that is current in the configured timezone.
func (g *Generator) CurrentMonth(ctx context.Context, userID int64) (MonthlyReport, error) {
	return g.Month(ctx, userID, g.now())
}

// Month reports the calendar month containing at.
func (g *Generator) Month(ctx context.Context, userID int64, at time.Time) (report MonthlyReport, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reports.Month")
	defer span.Finish()
	logger.Info("Month report - start", zap.Int64("userID", userID))
	defer logger.Info("Month report - end", zap.Int64("userID", userID))

	from, to := g.monthBounds(at)
	key := monthKey(from)
	if g.cached(userID, key, &report) {
		return report, nil
	}

	rows, err := g.storage.SumByCategory(ctx, userID, from, to)
	if err != nil {
		return MonthlyReport{}, errors.Wrap(err, "month report")
	}
	report = MonthlyReport{Month: from, Currency: g.currency, Rows: rows, Total: decimal.Zero}
	for _, r := range rows {
		report.Total = report.Total.Add(r.Total)
		report.Count += r.Count
	}
	g.store(userID, key, report)
	return report, nil
}

// CurrentYear reports the year that is current in the configured timezone.
func (g *Generator) CurrentYear(ctx context.Context, userID int64) (YearlyReport, error) {
	return g.Year(ctx, userID, g.now())
}

func (g *Generator) Year(ctx context.Context, userID int64, at time.Time) (report YearlyReport, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reports.Year")
	defer span.Finish()
	logger.Info("Year report - start", zap.Int64("userID", userID))
	defer logger.Info("Year report - end", zap.Int64("userID", userID))

	from, to := g.yearBounds(at)
	key := yearKey(from.Year())
	if g.cached(userID, key, &report) {
		return report, nil
	}

	expenses, err := g.storage.ListExpenses(ctx, userID, from, to, 0)
	if err != nil {
		return YearlyReport{}, errors.Wrap(err, "year report")
	}
	report = YearlyReport{Year: from.Year(), Currency: g.currency, Total: decimal.Zero}
	for i := range report.Months {
		report.Months[i] = decimal.Zero
	}
	for _, e := range expenses {
		m := e.SpentAt.In(g.loc).Month() - 1
		report.Months[m] = report.Months[m].Add(e.Amount)
		report.Total = report.Total.Add(e.Amount)
		report.Count++
	}
	g.store(userID, key, report)
	return report, nil
}

// Invalidate drops cached reports that include the moment at.
func (g *Generator) Invalidate(userID int64, at time.Time) {
	month, _ := g.monthBounds(at)
	keys := []string{monthKey(month), yearKey(month.Year())}
	if err := g.cache.InvalidateCache(userID, keys); err != nil {
		logger.Error("cannot invalidate report cache", zap.Int64("userID", userID), zap.Error(err))
	}
}

// InvalidateCurrent drops the cached reports of the current month and year.
func (g *Generator) InvalidateCurrent(userID int64) {
	g.Invalidate(userID, g.now())
}

func (g *Generator) cached(userID int64, key string, dst any) bool {
	raw, err := g.cache.GetReport(userID, key)
	if err != nil {
		return false
	}
	if err = json.Unmarshal([]byte(raw), dst); err != nil {
		logger.Warn("broken cached report", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (g *Generator) store(userID int64, key string, report any) {
	raw, err := json.Marshal(report)
	if err != nil {
		logger.Error("cannot encode report", zap.Error(err))
		return
	}
	if err = g.cache.CacheReport(userID, key, string(raw)); err != nil {
		logger.Warn("cannot cache report", zap.String("key", key), zap.Error(err))
	}
}
