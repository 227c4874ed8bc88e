package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MXN = "MXN"
	USD = "USD"
	EUR = "EUR"
	COP = "COP"
	ARS = "ARS"
)

var Currencies = []string{MXN, USD, EUR, COP, ARS}

func IsSupported(code string) bool {
	for _, c := range Currencies {
		if c == code {
			return true
		}
	}
	return false
}

// Normalize returns the upper-case code when supported and def otherwise.
func Normalize(code, def string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch code {
	case "PESOS", "PESO":
		return MXN
	case "DOLARES", "DÓLARES", "DOLLARS":
		return USD
	case "EUROS":
		return EUR
	}
	if IsSupported(code) {
		return code
	}
	return def
}

// Format renders an amount as "$1,234.50 MXN". The digits are exactly the
// two-decimal value that gets persisted.
func Format(amount decimal.Decimal, code string) string {
	return "$" + Group(amount) + " " + code
}

// Group renders an amount with two decimals and comma thousands separators.
func Group(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
