package reports

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	chartWidth  = 1000
	chartHeight = 600
	minShare    = 0.01
)

// PieChart draws the monthly category shares as PNG. It returns nil when
// there is nothing to draw.
func (r MonthlyReport) PieChart() ([]byte, error) {
	if !r.Total.IsPositive() {
		return nil, nil
	}
	total := r.Total.InexactFloat64()
	values := make([]chart.Value, 0, len(r.Rows))
	other := 0.0
	for _, row := range r.Rows {
		amount := row.Total.InexactFloat64()
		if amount/total < minShare {
			other += amount
			continue
		}
		// the chart font has no emoji glyphs
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.0f%%", row.Category.Name, amount/total*100),
			Value: amount,
		})
	}
	if other > 0 {
		values = append(values, chart.Value{Label: "Resto", Value: other})
	}

	pie := chart.PieChart{
		Title:  fmt.Sprintf("Gastos de %s", monthTitle(r.Month)),
		Width:  chartWidth,
		Height: chartHeight,
		Values: values,
		Background: chart.Style{
			Padding:   chart.Box{Top: 60, Left: 40, Right: 40, Bottom: 40},
			FillColor: chart.ColorWhite,
		},
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "render pie chart")
	}
	return buf.Bytes(), nil
}

// BarChart draws the monthly totals of the year as PNG. It returns nil when
// there is nothing to draw.
func (r YearlyReport) BarChart() ([]byte, error) {
	if !r.Total.IsPositive() {
		return nil, nil
	}
	bars := make([]chart.Value, 0, len(r.Months))
	for i, total := range r.Months {
		bars = append(bars, chart.Value{
			Label: title(monthNames[i][:3]),
			Value: total.InexactFloat64(),
		})
	}

	bar := chart.BarChart{
		Title:    fmt.Sprintf("Gastos por mes %d (%s)", r.Year, r.Currency),
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: 50,
		Bars:     bars,
		Background: chart.Style{
			Padding:   chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
	}
	var buf bytes.Buffer
	if err := bar.Render(chart.PNG, &buf); err != nil {
		return nil, errors.Wrap(err, "render bar chart")
	}
	return buf.Bytes(), nil
}
