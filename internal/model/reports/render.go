package reports

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

const separator = "━━━━━━━━━━━━━━━"

func title(s string) string {
	return cases.Title(language.Spanish).String(s)
}

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func MonthName(m time.Month) string {
	return monthNames[m-1]
}

func monthTitle(t time.Time) string {
	return fmt.Sprintf("%s %d", MonthName(t.Month()), t.Year())
}

// Text renders the monthly breakdown as Telegram HTML.
func (r MonthlyReport) Text() string {
	if r.Count == 0 {
		return fmt.Sprintf("📭 No tienes gastos registrados en %s.", monthTitle(r.Month))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Gastos de %s</b>\n\n", monthTitle(r.Month))
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s: %s (%d)\n", html.EscapeString(row.Category.Label()),
			currency.Format(row.Total, r.Currency), row.Count)
	}
	fmt.Fprintf(&b, "%s\n💰 <b>Total: %s</b> en %d %s", separator,
		currency.Format(r.Total, r.Currency), r.Count, plural(r.Count, "gasto", "gastos"))
	return b.String()
}

// Text renders the per-month totals of the year as Telegram HTML.
func (r YearlyReport) Text() string {
	if r.Count == 0 {
		return fmt.Sprintf("📭 No tienes gastos registrados en %d.", r.Year)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>Gastos de %d</b>\n\n", r.Year)
	for i, total := range r.Months {
		if total.IsZero() {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", title(monthNames[i]), currency.Format(total, r.Currency))
	}
	avg := r.Total.Div(decimal.NewFromInt(activeMonths(r)))
	fmt.Fprintf(&b, "%s\n💰 <b>Total: %s</b>\n📈 Promedio mensual: %s", separator,
		currency.Format(r.Total, r.Currency), currency.Format(avg, r.Currency))
	return b.String()
}

func activeMonths(r YearlyReport) int64 {
	var n int64
	for _, m := range r.Months {
		if !m.IsZero() {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// HistoryText renders the latest expenses, numbered from 1 so /borrar can refer to them.
func HistoryText(records []expense.Record, loc *time.Location) string {
	if len(records) == 0 {
		return "📭 Aún no tienes gastos registrados."
	}
	var b strings.Builder
	b.WriteString("🧾 <b>Últimos gastos</b>\n\n")
	for i, r := range records {
		desc := r.Description
		if desc == "" {
			desc = r.Category.Name
		}
		fmt.Fprintf(&b, "%d. %s %s · %s · %s\n", i+1, r.Category.Emoji,
			html.EscapeString(desc),
			currency.Format(r.Amount, r.Currency),
			r.SpentAt.In(loc).Format("02/01/2006"))
	}
	b.WriteString("\nUsa /borrar &lt;número&gt; para eliminar uno.")
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
