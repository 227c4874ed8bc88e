package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/phpdave11/gofpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
)

const (
	csvDateLayout  = "2006-01-02 15:04"
	pdfDateLayout  = "02/01/2006"
	maxPDFDescRune = 42
)

var csvHeader = []string{
	"fecha", "monto", "moneda", "categoria", "descripcion", "comercio", "metodo_pago", "origen",
}

// ExportCSV returns every expense of the user as CSV, oldest first, and how many there were.
func (g *Generator) ExportCSV(ctx context.Context, userID int64) ([]byte, int, error) {
	records, err := g.allExpenses(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err = w.Write(csvHeader); err != nil {
		return nil, 0, errors.Wrap(err, "write csv")
	}
	for _, r := range records {
		err = w.Write([]string{
			r.SpentAt.In(g.loc).Format(csvDateLayout),
			r.Amount.StringFixed(2),
			r.Currency,
			r.Category.Name,
			r.Description,
			r.Merchant,
			string(r.PaymentMethod),
			string(r.Source),
		})
		if err != nil {
			return nil, 0, errors.Wrap(err, "write csv")
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return nil, 0, errors.Wrap(err, "write csv")
	}
	return buf.Bytes(), len(records), nil
}

// ExportPDF renders every expense of the user as a printable statement.
func (g *Generator) ExportPDF(ctx context.Context, userID int64, holder string) ([]byte, int, error) {
	records, err := g.allExpenses(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("Estado de gastos"))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Titular: %s", holder)))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Generado: %s", g.now().In(g.loc).Format(pdfDateLayout))))
	pdf.Ln(10)

	widths := []float64{24, 32, 72, 26, 28}
	headers := []string{"Fecha", "Categoría", "Descripción", "Método", "Monto"}
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	totals := make(map[string]decimal.Decimal)
	for _, r := range records {
		totals[r.Currency] = totals[r.Currency].Add(r.Amount)
		cells := []string{
			r.SpentAt.In(g.loc).Format(pdfDateLayout),
			r.Category.Name,
			clip(r.Description, maxPDFDescRune),
			paymentName(r.PaymentMethod),
			currency.Format(r.Amount, r.Currency),
		}
		for i, c := range cells {
			align := "L"
			if i == len(cells)-1 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	codes := make([]string, 0, len(totals))
	for code := range totals {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		pdf.Cell(0, 7, tr(fmt.Sprintf("Total %s: %s", code, currency.Format(totals[code], code))))
		pdf.Ln(6)
	}
	if len(records) == 0 {
		pdf.Cell(0, 7, tr("Sin gastos registrados."))
	}

	var buf bytes.Buffer
	if err = pdf.Output(&buf); err != nil {
		return nil, 0, errors.Wrap(err, "render pdf")
	}
	return buf.Bytes(), len(records), nil
}

func (g *Generator) allExpenses(ctx context.Context, userID int64) ([]expense.Record, error) {
	logger.Info("export expenses", zap.Int64("userID", userID))
	records, err := g.storage.ListExpenses(ctx, userID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return nil, errors.Wrap(err, "export expenses")
	}
	// storage lists newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func paymentName(p expense.PaymentMethod) string {
	switch p {
	case expense.Cash:
		return "Efectivo"
	case expense.Transfer:
		return "Transferencia"
	default:
		return "Tarjeta"
	}
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}
