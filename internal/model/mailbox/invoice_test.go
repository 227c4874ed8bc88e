package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"max.ks1230/expenses-bot/internal/clients/imap"
)

func Test_totalFrom_ShouldPickLargestLabelledAmount(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		want  string
		found bool
	}{
		{name: "plain", text: "Total: $1,500.00 MXN", want: "1500.00", found: true},
		{name: "largest wins", text: "Subtotal 1,293.10 IVA 206.90 Total 1,500.00 Importe total $1,500.00", want: "1500.00", found: true},
		{name: "subtotal only", text: "Subtotal 250.00", found: false},
		{name: "total a pagar", text: "TOTAL A PAGAR: 849.5", want: "849.50", found: true},
		{name: "decimal comma", text: "Total 99,90", want: "99.90", found: true},
		{name: "amount due", text: "Amount due (USD): $20.00", want: "20.00", found: true},
		{name: "no amount", text: "Total de artículos: ninguno", found: false},
		{name: "implausible skipped", text: "Total 99999999999999999999 Total: 500.00", want: "500.00", found: true},
		{name: "only implausible", text: "Total 99999999999999999999", found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := totalFrom(tc.text)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.want, got.StringFixed(2))
			}
		})
	}
}

func Test_looksLikeInvoice(t *testing.T) {
	assert.True(t, looksLikeInvoice(imap.Header{Subject: "Tu factura de mayo"}))
	assert.True(t, looksLikeInvoice(imap.Header{Subject: "Hola", FromName: "Payment Services"}))
	assert.True(t, looksLikeInvoice(imap.Header{Subject: "Confirmación de tu compra"}))
	assert.False(t, looksLikeInvoice(imap.Header{Subject: "Reunión del lunes", From: "ana@example.com"}))
}

func Test_currencyFrom(t *testing.T) {
	assert.Equal(t, "USD", currencyFrom("Total due 20.00 usd", "MXN"))
	assert.Equal(t, "MXN", currencyFrom("Total 20.00", "MXN"))
}
