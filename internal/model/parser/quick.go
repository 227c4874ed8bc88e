package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

const (
	amountPattern   = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:[.,]\d{1,2})?)`
	currencyPattern = `(?:\s*(pesos|mxn|usd|d[oó]lares|eur|euros))?`
	wordPattern     = `[a-záéíóúñü]`
)

type quickPattern struct {
	re *regexp.Regexp
	// index of the amount and description groups
	amount, currency, description int
}

// Common phrasings handled without calling the model, tried in order.
var quickPatterns = []quickPattern{
	// "gasté 100 en uber", "pagué $80 de café"
	{re: regexp.MustCompile(`^(?:gast[eé]|pagu[eé]|compr[eé])\s+\$?\s*` + amountPattern + currencyPattern + `\s+(?:en|de)\s+(.+)$`),
		amount: 1, currency: 2, description: 3},
	// "100 en uber"
	{re: regexp.MustCompile(`^\$?\s*` + amountPattern + currencyPattern + `\s+(?:en|de)\s+(.+)$`),
		amount: 1, currency: 2, description: 3},
	// "$100 uber"
	{re: regexp.MustCompile(`^\$\s*` + amountPattern + `()\s+(.+)$`),
		amount: 1, currency: 2, description: 3},
	// "100 uber"
	{re: regexp.MustCompile(`^` + amountPattern + `()\s+(` + wordPattern + `.*)$`),
		amount: 1, currency: 2, description: 3},
	// "uber 100"
	{re: regexp.MustCompile(`^(` + wordPattern + `[a-záéíóúñü\s]*?)\s+\$?` + amountPattern + `()$`),
		amount: 2, currency: 3, description: 1},
}

var knownMerchants = []string{
	"mercado libre", "burger king", "uber", "didi", "rappi", "amazon", "walmart",
	"costco", "oxxo", "netflix", "spotify", "steam", "apple", "google",
	"microsoft", "starbucks", "mcdonalds", "liverpool",
}

var paymentKeywords = []struct {
	word   string
	method expense.PaymentMethod
}{
	{word: "efectivo", method: expense.Cash},
	{word: "transferencia", method: expense.Transfer},
	{word: "spei", method: expense.Transfer},
	{word: "tarjeta", method: expense.Card},
}

type quickResult struct {
	amount      decimal.Decimal
	currency    string
	description string
}

func quickParse(text, defCurrency string) (quickResult, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, p := range quickPatterns {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		amount, ok := parseAmount(m[p.amount])
		if !ok {
			continue
		}
		desc := strings.TrimSpace(m[p.description])
		if desc == "" {
			continue
		}
		return quickResult{
			amount:      amount,
			currency:    currency.Normalize(m[p.currency], defCurrency),
			description: capitalize(desc),
		}, true
	}
	return quickResult{}, false
}

var thousandsRe = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)

// parseAmount accepts "1500", "1,500", "1,500.50", "99.9" and "99,90".
func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	switch {
	case strings.Contains(raw, ".") && strings.Contains(raw, ","), thousandsRe.MatchString(raw):
		raw = strings.ReplaceAll(raw, ",", "")
	default:
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func merchantFrom(text string) string {
	lower := strings.ToLower(text)
	for _, m := range knownMerchants {
		if containsWord(lower, m) {
			return titleCase(m)
		}
	}
	return ""
}

func paymentFrom(text string) (expense.PaymentMethod, bool) {
	lower := strings.ToLower(text)
	for _, k := range paymentKeywords {
		if containsWord(lower, k.word) {
			return k.method, true
		}
	}
	return "", false
}

func containsWord(text, word string) bool {
	for i := strings.Index(text, word); i >= 0; {
		end := i + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:i])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (i == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		next := strings.Index(text[end:], word)
		if next < 0 {
			return false
		}
		i = end + next
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
