package mailbox

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"max.ks1230/expenses-bot/internal/clients/imap"
	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

var invoiceKeywords = []string{
	"factura", "invoice", "recibo", "receipt", "payment",
	"orden", "order", "compra", "purchase", "confirmación",
	"confirmation", "cargo", "charge", "pago", "paid",
	"suscripción", "subscription", "renovación", "renewal", "cfdi",
}

var (
	totalRe = regexp.MustCompile(`(?i)\b(?:importe\s+total|total\s+a\s+pagar|monto\s+total|amount\s+due|grand\s+total|total)` +
		`\s*(?:\(?(?:mxn|usd|eur)\)?)?\s*:?\s*\$?\s*` +
		`(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)
	currencyRe = regexp.MustCompile(`\b(MXN|USD|EUR|COP|ARS)\b`)
)

// looksLikeInvoice matches the subject or sender against the invoice keywords.
func looksLikeInvoice(h imap.Header) bool {
	text := strings.ToLower(h.Subject + " " + h.FromName + " " + h.From)
	for _, k := range invoiceKeywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// totalFrom finds every labelled total in the text and returns the largest
// plausible one.
func totalFrom(text string) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, m := range totalRe.FindAllStringSubmatch(text, -1) {
		amount, ok := parseTotal(m[1])
		if !ok || !expense.InRange(amount) {
			continue
		}
		if !found || amount.GreaterThan(best) {
			best, found = amount, true
		}
	}
	return best, found
}

func parseTotal(raw string) (decimal.Decimal, bool) {
	if i := strings.LastIndex(raw, ","); i >= 0 {
		if strings.Contains(raw, ".") || len(raw)-i-1 == 3 {
			raw = strings.ReplaceAll(raw, ",", "")
		} else {
			raw = strings.Replace(raw, ",", ".", 1)
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func currencyFrom(text, def string) string {
	if m := currencyRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return currency.Normalize(m[1], def)
	}
	return def
}
