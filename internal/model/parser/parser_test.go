package parser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

type completerMock struct {
	mock.Mock
}

func (m *completerMock) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

type configStub struct {
	loc *time.Location
}

func (c configStub) BaseCurrency() string     { return "MXN" }
func (c configStub) Location() *time.Location { return c.loc }

func newParser(t *testing.T, llm completer) (*Parser, time.Time) {
	catalog, err := expense.LoadCatalog("")
	require.NoError(t, err)
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	now := time.Date(2024, 5, 15, 18, 30, 0, 0, loc)
	p := New(llm, catalog, configStub{loc: loc})
	p.now = func() time.Time { return now }
	return p, now
}

func Test_Parse_ShouldHandleCommonPhrasingsLocally(t *testing.T) {
	llm := &completerMock{}
	p, _ := newParser(t, llm)

	cases := []struct {
		text     string
		amount   string
		category string
		merchant string
		currency string
	}{
		{text: "Gasté 150 en uber", amount: "150.00", category: "transporte", merchant: "Uber", currency: "MXN"},
		{text: "pagué 80.5 de café", amount: "80.50", category: "alimentacion", currency: "MXN"},
		{text: "200 dolares en amazon", amount: "200.00", category: "compras", merchant: "Amazon", currency: "USD"},
		{text: "$1,250.99 supermercado", amount: "1250.99", category: "alimentacion", currency: "MXN"},
		{text: "netflix 199", amount: "199.00", category: "entretenimiento", merchant: "Netflix", currency: "MXN"},
		{text: "99,90 farmacia", amount: "99.90", category: "salud", currency: "MXN"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			c, err := p.Parse(context.Background(), tc.text, expense.SourceText)
			require.NoError(t, err)
			assert.Equal(t, tc.amount, c.Amount.StringFixed(2))
			assert.Equal(t, tc.category, c.Category.Key)
			assert.Equal(t, tc.merchant, c.Merchant)
			assert.Equal(t, tc.currency, c.Currency)
			assert.Equal(t, tc.text, c.OriginalMessage)
			assert.False(t, c.NeedsClarification)
		})
	}
	llm.AssertNotCalled(t, "CompleteJSON", mock.Anything, mock.Anything, mock.Anything)
}

func Test_Parse_ShouldDetectPaymentMethodKeywords(t *testing.T) {
	p, _ := newParser(t, &completerMock{})

	c, err := p.Parse(context.Background(), "gasté 300 en gasolina en efectivo", expense.SourceVoice)
	require.NoError(t, err)
	assert.Equal(t, expense.Cash, c.PaymentMethod)
	assert.Equal(t, expense.SourceVoice, c.Source)

	c, err = p.Parse(context.Background(), "uber 90", expense.SourceText)
	require.NoError(t, err)
	assert.Equal(t, expense.Card, c.PaymentMethod)
}

func Test_Parse_ShouldAskTheModelForFreeForm(t *testing.T) {
	llm := &completerMock{}
	p, now := newParser(t, llm)
	text := "ayer fui al cine con amigos y pagamos 300 en efectivo"
	llm.On("CompleteJSON", mock.Anything, mock.MatchedBy(func(system string) bool {
		return assert.Contains(t, system, "Hoy es 2024-05-15") && assert.Contains(t, system, "Entretenimiento")
	}), text).Return(`{
		"amount": 300,
		"currency": "MXN",
		"description": "Cine con amigos",
		"category": "Entretenimiento",
		"merchant": null,
		"payment_method": "efectivo",
		"date": "2024-05-14",
		"confidence": 0.9,
		"needs_clarification": false,
		"clarification_question": null
	}`, nil)

	c, err := p.Parse(context.Background(), text, expense.SourceText)
	require.NoError(t, err)
	llm.AssertExpectations(t)

	assert.Equal(t, "300.00", c.Amount.StringFixed(2))
	assert.Equal(t, "entretenimiento", c.Category.Key)
	assert.Equal(t, expense.Cash, c.PaymentMethod)
	assert.Equal(t, "Cine con amigos", c.Description)
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 14, 12, 0, 0, 0, now.Location()), c.SpentAt)
}

func Test_Parse_ShouldFallBackOnUnknownModelValues(t *testing.T) {
	llm := &completerMock{}
	p, now := newParser(t, llm)
	llm.On("CompleteJSON", mock.Anything, mock.Anything, mock.Anything).Return(`{
		"amount": "45.5",
		"currency": "BTC",
		"description": "Croquetas para el perro",
		"category": "Mascotas",
		"payment_method": "cripto",
		"date": "mañana"
	}`, nil)

	c, err := p.Parse(context.Background(), "croquetas para el perro cuarenta y cinco cincuenta", expense.SourceText)
	require.NoError(t, err)

	assert.Equal(t, "45.50", c.Amount.StringFixed(2))
	assert.Equal(t, "MXN", c.Currency)
	assert.Equal(t, expense.OtherKey, c.Category.Key)
	assert.Equal(t, expense.Card, c.PaymentMethod)
	assert.Equal(t, now, c.SpentAt)
}

func Test_Parse_ShouldRequireClarificationWithoutAmount(t *testing.T) {
	llm := &completerMock{}
	p, _ := newParser(t, llm)
	llm.On("CompleteJSON", mock.Anything, mock.Anything, mock.Anything).Return(`{
		"amount": 0,
		"description": "Hola",
		"category": "Otros",
		"needs_clarification": true,
		"clarification_question": "¿Cuánto gastaste?"
	}`, nil)

	c, err := p.Parse(context.Background(), "hola, ¿cómo estás?", expense.SourceText)
	require.NoError(t, err)
	assert.True(t, c.NeedsClarification)
	assert.Equal(t, "¿Cuánto gastaste?", c.ClarificationQuestion)
}

func Test_Parse_ShouldQuestionImplausibleAmounts(t *testing.T) {
	llm := &completerMock{}
	p, _ := newParser(t, llm)

	c, err := p.Parse(context.Background(), "Gasté 99999999999999999999 en uber", expense.SourceText)
	require.NoError(t, err)
	assert.True(t, c.NeedsClarification)
	assert.Equal(t, tooLargeQuestion, c.ClarificationQuestion)
	llm.AssertNotCalled(t, "CompleteJSON", mock.Anything, mock.Anything, mock.Anything)
}

func Test_Parse_ShouldReportModelFailures(t *testing.T) {
	cases := map[string][]any{
		"call error": {"", errors.New("timeout")},
		"not json":   {"lo siento, no entiendo", nil},
	}
	for name, ret := range cases {
		t.Run(name, func(t *testing.T) {
			llm := &completerMock{}
			p, _ := newParser(t, llm)
			llm.On("CompleteJSON", mock.Anything, mock.Anything, mock.Anything).Return(ret...)

			_, err := p.Parse(context.Background(), "algo raro que no es un gasto claro", expense.SourceText)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func Test_Parse_ShouldRejectEmptyText(t *testing.T) {
	p, _ := newParser(t, &completerMock{})
	_, err := p.Parse(context.Background(), "   ", expense.SourceText)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func Test_parseAmount(t *testing.T) {
	for raw, want := range map[string]string{
		"150":        "150.00",
		"1,500":      "1500.00",
		"1,500.50":   "1500.50",
		"12,345,678": "12345678.00",
		"99,9":       "99.90",
		"$ 20":       "20.00",
	} {
		got, ok := parseAmount(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got.StringFixed(2), raw)
	}
	_, ok := parseAmount("abc")
	assert.False(t, ok)
}
