package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a single expense may have.
var MaxAmount = decimal.New(1, 9)

type PaymentMethod string

const (
	Cash     PaymentMethod = "cash"
	Card     PaymentMethod = "card"
	Transfer PaymentMethod = "transfer"
)

var PaymentMethods = []PaymentMethod{Cash, Card, Transfer}

// ParsePaymentMethod accepts the stored value or its Spanish name.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch fold(raw) {
	case "cash", "efectivo":
		return Cash, true
	case "card", "tarjeta", "credito", "debito", "tarjeta de credito", "tarjeta de debito":
		return Card, true
	case "transfer", "transferencia", "spei":
		return Transfer, true
	}
	return "", false
}

func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if m == p {
			return true
		}
	}
	return false
}

func (p PaymentMethod) Label() string {
	switch p {
	case Cash:
		return "💵 Efectivo"
	case Transfer:
		return "🏦 Transferencia"
	default:
		return "💳 Tarjeta"
	}
}

type Source string

const (
	SourceText  Source = "telegram_text"
	SourceVoice Source = "telegram_voice"
	SourceEmail Source = "email"
)

func (s Source) Valid() bool {
	switch s {
	case SourceText, SourceVoice, SourceEmail:
		return true
	}
	return false
}

// Record is a confirmed, persisted expense.
type Record struct {
	ID              int64
	UserID          int64
	Amount          decimal.Decimal
	Currency        string
	Category        Category
	Description     string
	Merchant        string
	PaymentMethod   PaymentMethod
	Source          Source
	OriginalMessage string
	SpentAt         time.Time
	CreatedAt       time.Time
}

// Candidate is an unconfirmed expense waiting for the user's answer.
type Candidate struct {
	ID                    string
	Amount                decimal.Decimal
	Currency              string
	Category              Category
	Description           string
	Merchant              string
	PaymentMethod         PaymentMethod
	Source                Source
	OriginalMessage       string
	SpentAt               time.Time
	Confidence            float64
	NeedsClarification    bool
	ClarificationQuestion string
}

// NewCandidate assigns an id and rounds the amount to cents, so the value
// shown for confirmation is the value that gets stored. Amounts outside
// (0, MaxAmount] need clarification.
func NewCandidate(amount decimal.Decimal, cur string, cat Category, spentAt time.Time) Candidate {
	amount = RoundAmount(amount)
	return Candidate{
		ID:                 uuid.NewString(),
		Amount:             amount,
		Currency:           cur,
		Category:           cat,
		PaymentMethod:      Card,
		SpentAt:            spentAt,
		Confidence:         1,
		NeedsClarification: !InRange(amount),
	}
}

func (c Candidate) Record(userID int64) Record {
	return Record{
		UserID:          userID,
		Amount:          RoundAmount(c.Amount),
		Currency:        c.Currency,
		Category:        c.Category,
		Description:     c.Description,
		Merchant:        c.Merchant,
		PaymentMethod:   c.PaymentMethod,
		Source:          c.Source,
		OriginalMessage: c.OriginalMessage,
		SpentAt:         c.SpentAt,
	}
}

// InRange reports whether amount is positive and at most MaxAmount.
func InRange(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThanOrEqual(MaxAmount)
}

func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// CategoryTotal is one row of a by-category aggregate.
type CategoryTotal struct {
	Category Category
	Total    decimal.Decimal
	Count    int
}
