package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	maxDescription       = 100
	quickConfidence      = 0.7
	quickOtherConfidence = 0.5
	defaultLLMConfidence = 0.5
	defaultClarification = "¿Cuánto gastaste y en qué? Por ejemplo: «Gasté 150 en uber»."
	tooLargeQuestion     = "Ese monto parece demasiado alto. ¿Cuánto gastaste exactamente?"
	llmDateLayout        = "2006-01-02"
)

var (
	// ErrUnavailable means the language model could not be reached or
	// answered with something unusable.
	ErrUnavailable = errors.New("expense parser unavailable")
	ErrEmptyText   = errors.New("empty text")
)

type completer interface {
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

type config interface {
	BaseCurrency() string
	Location() *time.Location
}

type Parser struct {
	llm      completer
	catalog  *expense.Catalog
	currency string
	loc      *time.Location
	now      func() time.Time
}

func New(llm completer, catalog *expense.Catalog, config config) *Parser {
	return &Parser{
		llm:      llm,
		catalog:  catalog,
		currency: config.BaseCurrency(),
		loc:      config.Location(),
		now:      time.Now,
	}
}

// Parse turns a free-text description into a candidate expense. Common
// phrasings are handled locally, everything else goes to the model.
func (p *Parser) Parse(ctx context.Context, text string, source expense.Source) (expense.Candidate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "parser.Parse")
	defer span.Finish()

	text = strings.TrimSpace(text)
	if text == "" {
		return expense.Candidate{}, ErrEmptyText
	}

	if q, ok := quickParse(text, p.currency); ok {
		span.SetTag("method", "quick")
		parsedTotal.WithLabelValues("quick").Inc()
		return p.fromQuick(q, text, source), nil
	}

	span.SetTag("method", "llm")
	c, err := p.parseWithLLM(ctx, text, source)
	if err != nil {
		ext.Error.Set(span, true)
		parsedTotal.WithLabelValues("failed").Inc()
		return expense.Candidate{}, err
	}
	parsedTotal.WithLabelValues("llm").Inc()
	return c, nil
}

func (p *Parser) fromQuick(q quickResult, text string, source expense.Source) expense.Candidate {
	cat := p.catalog.Match(q.description)
	c := expense.NewCandidate(q.amount, q.currency, cat, p.now().In(p.loc))
	c.Description = truncate(q.description, maxDescription)
	c.Merchant = merchantFrom(q.description)
	if method, ok := paymentFrom(text); ok {
		c.PaymentMethod = method
	}
	c.Source = source
	c.OriginalMessage = text
	c.Confidence = quickConfidence
	if cat.Key == expense.OtherKey {
		c.Confidence = quickOtherConfidence
	}
	if c.NeedsClarification {
		c.ClarificationQuestion = clarification(c, "")
	}
	return c
}

// llmExpense is the JSON object the model is asked to produce.
type llmExpense struct {
	Amount                any      `json:"amount"`
	Currency              string   `json:"currency"`
	Description           string   `json:"description"`
	Category              string   `json:"category"`
	Merchant              *string  `json:"merchant"`
	PaymentMethod         string   `json:"payment_method"`
	Date                  string   `json:"date"`
	Confidence            *float64 `json:"confidence"`
	NeedsClarification    bool     `json:"needs_clarification"`
	ClarificationQuestion *string  `json:"clarification_question"`
}

func (p *Parser) parseWithLLM(ctx context.Context, text string, source expense.Source) (expense.Candidate, error) {
	now := p.now().In(p.loc)
	answer, err := p.llm.CompleteJSON(ctx, p.systemPrompt(now), text)
	if err != nil {
		logger.Error("llm parse failed", zap.Error(err))
		return expense.Candidate{}, errors.Wrap(ErrUnavailable, err.Error())
	}

	var res llmExpense
	if err = json.Unmarshal([]byte(answer), &res); err != nil {
		logger.Error("llm answer is not json", zap.String("answer", answer), zap.Error(err))
		return expense.Candidate{}, errors.Wrap(ErrUnavailable, "decode answer")
	}
	return p.fromLLM(res, text, source, now), nil
}

func (p *Parser) fromLLM(res llmExpense, text string, source expense.Source, now time.Time) expense.Candidate {
	description := strings.TrimSpace(res.Description)
	if description == "" {
		description = text
	}
	description = truncate(description, maxDescription)

	cat, ok := p.catalog.Lookup(res.Category)
	if !ok {
		cat = p.catalog.Match(description + " " + text)
	}

	c := expense.NewCandidate(amountOf(res.Amount), currency.Normalize(res.Currency, p.currency), cat, p.spentAt(res.Date, now))
	c.Description = description
	c.Source = source
	c.OriginalMessage = text

	if res.Merchant != nil && strings.TrimSpace(*res.Merchant) != "" {
		c.Merchant = strings.TrimSpace(*res.Merchant)
	} else {
		c.Merchant = merchantFrom(text)
	}
	if method, ok := expense.ParsePaymentMethod(res.PaymentMethod); ok {
		c.PaymentMethod = method
	} else if method, ok = paymentFrom(text); ok {
		c.PaymentMethod = method
	}

	c.Confidence = defaultLLMConfidence
	if res.Confidence != nil {
		c.Confidence = clamp(*res.Confidence)
	}
	c.NeedsClarification = c.NeedsClarification || res.NeedsClarification
	if c.NeedsClarification {
		var asked string
		if res.ClarificationQuestion != nil {
			asked = *res.ClarificationQuestion
		}
		c.ClarificationQuestion = clarification(c, asked)
	}
	return c
}

// clarification picks the question to ask instead of a confirmation card.
func clarification(c expense.Candidate, asked string) string {
	if c.Amount.GreaterThan(expense.MaxAmount) {
		return tooLargeQuestion
	}
	if asked = strings.TrimSpace(asked); asked != "" {
		return asked
	}
	return defaultClarification
}

// spentAt keeps the current time for today and unknown dates, past days are
// placed at noon so they never slide across a day boundary.
func (p *Parser) spentAt(raw string, now time.Time) time.Time {
	day, err := time.ParseInLocation(llmDateLayout, strings.TrimSpace(raw), p.loc)
	if err != nil {
		return now
	}
	y, m, d := day.Date()
	ny, nm, nd := now.Date()
	if y == ny && m == nm && d == nd {
		return now
	}
	noon := time.Date(y, m, d, 12, 0, 0, 0, p.loc)
	if noon.After(now) {
		return now
	}
	return noon
}

func amountOf(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		if d, ok := parseAmount(v); ok {
			return d
		}
	}
	return decimal.Zero
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (p *Parser) systemPrompt(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres un asistente que extrae información de gastos de texto en español.\n")
	fmt.Fprintf(&b, "Hoy es %s. La zona horaria del usuario es %s.\n\n", now.Format(llmDateLayout), p.loc.String())
	fmt.Fprintf(&b, "Categorías disponibles: %s\n\n", strings.Join(p.catalog.Names(), ", "))
	b.WriteString("Extrae la siguiente información del texto del usuario y responde SOLO con JSON válido:\n")
	b.WriteString("{\n")
	b.WriteString(`  "amount": número (monto del gasto, sin símbolos de moneda),` + "\n")
	fmt.Fprintf(&b, `  "currency": código ISO de la moneda (asume %s si no se especifica),`+"\n", p.currency)
	b.WriteString(`  "description": "descripción breve del gasto",` + "\n")
	b.WriteString(`  "category": "una de las categorías disponibles",` + "\n")
	b.WriteString(`  "merchant": "nombre del comercio si se menciona, o null",` + "\n")
	b.WriteString(`  "payment_method": "efectivo", "tarjeta" o "transferencia" (tarjeta si no se menciona),` + "\n")
	b.WriteString(`  "date": "YYYY-MM-DD" (usa hoy si dice "hoy", ayer si dice "ayer", etc.),` + "\n")
	b.WriteString(`  "confidence": número entre 0 y 1,` + "\n")
	b.WriteString(`  "needs_clarification": boolean,` + "\n")
	b.WriteString(`  "clarification_question": "pregunta al usuario si needs_clarification es true, o null"` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("Si no puedes extraer un monto, usa 0 y marca needs_clarification como true.\n")
	b.WriteString("Si el texto no parece ser un gasto, responde con needs_clarification: true.")
	return b.String()
}
