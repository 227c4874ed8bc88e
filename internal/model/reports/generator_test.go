package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

type storageMock struct {
	mock.Mock
}

func (m *storageMock) SumByCategory(ctx context.Context, userID int64, from, to time.Time) ([]expense.CategoryTotal, error) {
	args := m.Called(ctx, userID, from, to)
	rows, _ := args.Get(0).([]expense.CategoryTotal)
	return rows, args.Error(1)
}

func (m *storageMock) ListExpenses(ctx context.Context, userID int64, from, to time.Time, limit int) ([]expense.Record, error) {
	args := m.Called(ctx, userID, from, to, limit)
	records, _ := args.Get(0).([]expense.Record)
	return records, args.Error(1)
}

// cacheStub is an in-memory report cache.
type cacheStub struct {
	items       map[string]string
	invalidated []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{items: make(map[string]string)}
}

func (c *cacheStub) CacheReport(userID int64, option string, report string) error {
	c.items[option] = report
	return nil
}

func (c *cacheStub) GetReport(userID int64, option string) (string, error) {
	raw, ok := c.items[option]
	if !ok {
		return "", errors.New("miss")
	}
	return raw, nil
}

func (c *cacheStub) InvalidateCache(userID int64, options []string) error {
	for _, o := range options {
		delete(c.items, o)
	}
	c.invalidated = append(c.invalidated, options...)
	return nil
}

type configStub struct {
	loc *time.Location
}

func (c configStub) BaseCurrency() string     { return "MXN" }
func (c configStub) Location() *time.Location { return c.loc }

type fixture struct {
	gen     *Generator
	storage *storageMock
	cache   *cacheStub
	catalog *expense.Catalog
	loc     *time.Location
	now     time.Time
}

func newFixture(t *testing.T) fixture {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)
	catalog, err := expense.LoadCatalog("")
	require.NoError(t, err)

	f := fixture{
		storage: &storageMock{},
		cache:   newCacheStub(),
		catalog: catalog,
		loc:     loc,
		now:     time.Date(2024, 5, 15, 12, 0, 0, 0, loc),
	}
	f.gen = NewGenerator(configStub{loc: loc}, f.storage, f.cache)
	f.gen.now = func() time.Time { return f.now }
	return f
}

func (f fixture) category(t *testing.T, key string) expense.Category {
	c, ok := f.catalog.ByKey(key)
	require.True(t, ok)
	return c
}

func sameTime(want time.Time) any {
	return mock.MatchedBy(func(got time.Time) bool { return got.Equal(want) })
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Test_CurrentMonth_ShouldSumRows(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, f.loc)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, f.loc)

	f.storage.On("SumByCategory", mock.Anything, int64(123), sameTime(from), sameTime(to)).Return([]expense.CategoryTotal{
		{Category: f.category(t, "alimentacion"), Total: amount("350.50"), Count: 3},
		{Category: f.category(t, "transporte"), Total: amount("150"), Count: 1},
	}, nil).Once()

	report, err := f.gen.CurrentMonth(context.Background(), 123)
	require.NoError(t, err)

	assert.Equal(t, "500.50", report.Total.StringFixed(2))
	assert.Equal(t, 4, report.Count)
	assert.Equal(t, "MXN", report.Currency)
	assert.True(t, from.Equal(report.Month))
	f.storage.AssertExpectations(t)
}

func Test_Month_ShouldServeSecondCallFromCache(t *testing.T) {
	f := newFixture(t)
	f.storage.On("SumByCategory", mock.Anything, int64(1), mock.Anything, mock.Anything).Return([]expense.CategoryTotal{
		{Category: f.category(t, "salud"), Total: amount("99.90"), Count: 1},
	}, nil).Once()

	first, err := f.gen.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)
	second, err := f.gen.CurrentMonth(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first.Total.StringFixed(2), second.Total.StringFixed(2))
	assert.Equal(t, first.Rows[0].Category.Key, second.Rows[0].Category.Key)
	assert.Contains(t, f.cache.items, "stats:month:2024-05")
	f.storage.AssertNumberOfCalls(t, "SumByCategory", 1)
}

func Test_Month_ShouldWrapStorageError(t *testing.T) {
	f := newFixture(t)
	f.storage.On("SumByCategory", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(nil, errors.New("db down"))

	_, err := f.gen.CurrentMonth(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, f.cache.items)
}

func Test_CurrentYear_ShouldBucketByLocalMonth(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, f.loc)
	to := time.Date(2025, 1, 1, 0, 0, 0, 0, f.loc)

	f.storage.On("ListExpenses", mock.Anything, int64(7), sameTime(from), sameTime(to), 0).Return([]expense.Record{
		// 1 March 03:00 UTC is still February in Mexico City
		{Amount: amount("100"), SpentAt: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)},
		{Amount: amount("50.25"), SpentAt: time.Date(2024, 3, 10, 12, 0, 0, 0, f.loc)},
		{Amount: amount("20"), SpentAt: time.Date(2024, 3, 11, 12, 0, 0, 0, f.loc)},
	}, nil).Once()

	report, err := f.gen.CurrentYear(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, "100.00", report.Months[time.February-1].StringFixed(2))
	assert.Equal(t, "70.25", report.Months[time.March-1].StringFixed(2))
	assert.True(t, report.Months[time.January-1].IsZero())
	assert.Equal(t, "170.25", report.Total.StringFixed(2))
	assert.Equal(t, 3, report.Count)
	f.storage.AssertExpectations(t)
}

func Test_Invalidate_ShouldDropMonthAndYear(t *testing.T) {
	f := newFixture(t)
	f.cache.items["stats:month:2024-03"] = "{}"
	f.cache.items["stats:year:2024"] = "{}"
	f.cache.items["stats:month:2024-05"] = "{}"

	f.gen.Invalidate(1, time.Date(2024, 3, 20, 10, 0, 0, 0, f.loc))

	assert.Equal(t, []string{"stats:month:2024-03", "stats:year:2024"}, f.cache.invalidated)
	assert.Contains(t, f.cache.items, "stats:month:2024-05")
	assert.NotContains(t, f.cache.items, "stats:year:2024")
}

func Test_MonthlyText_ShouldListCategoriesAndTotal(t *testing.T) {
	f := newFixture(t)
	report := MonthlyReport{
		Month:    time.Date(2024, 5, 1, 0, 0, 0, 0, f.loc),
		Currency: "MXN",
		Rows: []expense.CategoryTotal{
			{Category: f.category(t, "alimentacion"), Total: amount("1250.5"), Count: 2},
		},
		Total: amount("1250.5"),
		Count: 2,
	}

	text := report.Text()
	assert.Contains(t, text, "mayo 2024")
	assert.Contains(t, text, "$1,250.50 MXN (2)")
	assert.Contains(t, text, "Total: $1,250.50 MXN</b> en 2 gastos")

	empty := MonthlyReport{Month: report.Month}
	assert.Contains(t, empty.Text(), "No tienes gastos registrados en mayo 2024")
}

func Test_YearlyText_ShouldAverageActiveMonths(t *testing.T) {
	report := YearlyReport{Year: 2024, Currency: "MXN", Total: amount("300"), Count: 3}
	for i := range report.Months {
		report.Months[i] = decimal.Zero
	}
	report.Months[0] = amount("100")
	report.Months[1] = amount("200")

	text := report.Text()
	assert.Contains(t, text, "Enero: $100.00 MXN")
	assert.Contains(t, text, "Febrero: $200.00 MXN")
	assert.NotContains(t, text, "Marzo")
	assert.Contains(t, text, "Promedio mensual: $150.00 MXN")
}

func Test_HistoryText_ShouldNumberEntriesAndEscape(t *testing.T) {
	f := newFixture(t)
	records := []expense.Record{
		{Amount: amount("80"), Currency: "MXN", Category: f.category(t, "alimentacion"),
			Description: "tacos <al pastor>", SpentAt: f.now},
		{Amount: amount("15"), Currency: "USD", Category: f.category(t, "otros"), SpentAt: f.now},
	}

	text := HistoryText(records, f.loc)
	assert.Contains(t, text, "1. ")
	assert.Contains(t, text, "tacos &lt;al pastor&gt;")
	assert.Contains(t, text, "2. ")
	assert.Contains(t, text, "$15.00 USD")
	assert.Contains(t, text, "15/05/2024")
	assert.Contains(t, HistoryText(nil, f.loc), "Aún no tienes gastos")
}

func Test_PieChart_ShouldRenderPNG(t *testing.T) {
	f := newFixture(t)
	report := MonthlyReport{
		Month:    time.Date(2024, 5, 1, 0, 0, 0, 0, f.loc),
		Currency: "MXN",
		Rows: []expense.CategoryTotal{
			{Category: f.category(t, "alimentacion"), Total: amount("300"), Count: 2},
			{Category: f.category(t, "transporte"), Total: amount("100"), Count: 1},
		},
		Total: amount("400"),
		Count: 3,
	}

	png, err := report.PieChart()
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	empty, err := MonthlyReport{}.PieChart()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func Test_ExportCSV_ShouldWriteOldestFirst(t *testing.T) {
	f := newFixture(t)
	f.storage.On("ListExpenses", mock.Anything, int64(5), time.Time{}, time.Time{}, 0).Return([]expense.Record{
		{Amount: amount("20"), Currency: "MXN", Category: f.category(t, "transporte"), Description: "metro",
			PaymentMethod: expense.Cash, Source: expense.SourceVoice, SpentAt: time.Date(2024, 5, 2, 9, 0, 0, 0, f.loc)},
		{Amount: amount("1500.5"), Currency: "MXN", Category: f.category(t, "compras"), Description: "audífonos",
			Merchant: "Amazon", PaymentMethod: expense.Card, Source: expense.SourceText,
			SpentAt: time.Date(2024, 5, 1, 20, 15, 0, 0, f.loc)},
	}, nil).Once()

	raw, n, err := f.gen.ExportCSV(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2024-05-01 20:15", "1500.50", "MXN", "Compras", "audífonos", "Amazon", "card", "telegram_text"}, rows[1])
	assert.Equal(t, "metro", rows[2][4])
}

func Test_ExportPDF_ShouldRenderDocument(t *testing.T) {
	f := newFixture(t)
	f.storage.On("ListExpenses", mock.Anything, int64(5), time.Time{}, time.Time{}, 0).Return([]expense.Record{
		{Amount: amount("99.9"), Currency: "MXN", Category: f.category(t, "salud"), Description: "farmacia",
			PaymentMethod: expense.Card, SpentAt: f.now},
	}, nil).Once()

	raw, n, err := f.gen.ExportPDF(context.Background(), 5, "Ana")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}
