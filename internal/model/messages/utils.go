package messages

import (
	"fmt"
	"html"
	"strings"
	"time"

	"max.ks1230/expenses-bot/internal/entity/currency"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

const (
	commandParts   = 2
	cardTimeLayout = "02/01/2006 15:04"
	callbackSep    = ":"
)

// Callback actions.
const (
	actionConfirm     = "ok"
	actionReject      = "no"
	actionPickCat     = "cat"
	actionSetCat      = "setcat"
	actionPayment     = "pay"
	actionBack        = "back"
	actionClear       = "clear"
	clearConfirmValue = "yes"
	clearKeepValue    = "no"
)

func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	split := strings.SplitN(text, " ", commandParts)

	cmd = split[0]
	if len(split) == commandParts {
		arg = strings.TrimSpace(split[1])
	}
	// commands sent from group menus carry the bot name
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), arg
}

func callbackData(parts ...string) string {
	return strings.Join(parts, callbackSep)
}

func parseCallback(data string) (action, id, value string) {
	parts := strings.SplitN(data, callbackSep, 3)
	action = parts[0]
	if len(parts) > 1 {
		id = parts[1]
	}
	if len(parts) > 2 {
		value = parts[2]
	}
	return action, id, value
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// candidateText renders a candidate under the given title.
func candidateText(title string, c expense.Candidate, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "💰 Monto: <b>%s</b>\n", currency.Format(c.Amount, c.Currency))
	fmt.Fprintf(&b, "%s Categoría: %s\n", c.Category.Emoji, html.EscapeString(c.Category.Name))
	if c.Description != "" {
		fmt.Fprintf(&b, "📄 Descripción: %s\n", html.EscapeString(c.Description))
	}
	if c.Merchant != "" {
		fmt.Fprintf(&b, "🏪 Comercio: %s\n", html.EscapeString(c.Merchant))
	}
	fmt.Fprintf(&b, "Pago: %s\n", c.PaymentMethod.Label())
	fmt.Fprintf(&b, "📅 Fecha: %s", c.SpentAt.In(loc).Format(cardTimeLayout))
	if c.Source == expense.SourceEmail {
		b.WriteString("\n📧 Origen: factura de tu correo")
	}
	if c.NeedsClarification && c.ClarificationQuestion != "" {
		fmt.Fprintf(&b, "\n\n⚠️ %s", html.EscapeString(c.ClarificationQuestion))
	}
	return b.String()
}

func recordText(r expense.Record) string {
	desc := r.Description
	if desc == "" {
		desc = r.Category.Name
	}
	return fmt.Sprintf("%s %s · %s", r.Category.Emoji, html.EscapeString(desc), currency.Format(r.Amount, r.Currency))
}

func confirmKeyboard(c expense.Candidate) *Keyboard {
	payments := make([]Button, 0, len(expense.PaymentMethods))
	for _, m := range expense.PaymentMethods {
		label := m.Label()
		if m == c.PaymentMethod {
			label = "• " + label
		}
		payments = append(payments, Button{Text: label, Data: callbackData(actionPayment, c.ID, string(m))})
	}
	return &Keyboard{Rows: [][]Button{
		{
			{Text: "✅ Confirmar", Data: callbackData(actionConfirm, c.ID)},
			{Text: "❌ Cancelar", Data: callbackData(actionReject, c.ID)},
		},
		payments,
		{{Text: "✏️ Editar categoría", Data: callbackData(actionPickCat, c.ID)}},
	}}
}

const categoriesPerRow = 2

func categoryKeyboard(c expense.Candidate, catalog *expense.Catalog) *Keyboard {
	var rows [][]Button
	var row []Button
	for _, cat := range catalog.All() {
		row = append(row, Button{Text: cat.Label(), Data: callbackData(actionSetCat, c.ID, cat.Key)})
		if len(row) == categoriesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{{Text: "⬅️ Volver", Data: callbackData(actionBack, c.ID)}})
	return &Keyboard{Rows: rows}
}

func clearKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Button{{
		{Text: "🗑️ Sí, borrar todo", Data: callbackData(actionClear, clearConfirmValue)},
		{Text: "Cancelar", Data: callbackData(actionClear, clearKeepValue)},
	}}}
}

// menuButtons maps the reply keyboard labels to the commands they run.
var menuButtons = [][]struct {
	label   string
	command string
}{
	{{label: "📊 Estadísticas", command: statsCommand}, {label: "📅 Resumen anual", command: statsYearCommand}},
	{{label: "🧾 Historial", command: historyCommand}, {label: "🏷️ Categorías", command: categoriesCommand}},
	{{label: "📧 Buscar facturas", command: scanEmailCommand}, {label: "❓ Ayuda", command: helpCommand}},
}

func menuKeyboard() *Keyboard {
	rows := make([][]Button, 0, len(menuButtons))
	for _, line := range menuButtons {
		row := make([]Button, 0, len(line))
		for _, b := range line {
			row = append(row, Button{Text: b.label})
		}
		rows = append(rows, row)
	}
	return &Keyboard{Rows: rows, Reply: true}
}

func menuCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, line := range menuButtons {
		for _, b := range line {
			if b.label == text {
				return b.command, true
			}
		}
	}
	return "", false
}
