package messages

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/clients/imap"
	"max.ks1230/expenses-bot/internal/logger"
	"max.ks1230/expenses-bot/internal/model/journal"
	"max.ks1230/expenses-bot/internal/model/mailbox"
	"max.ks1230/expenses-bot/internal/model/reports"
	storagepkg "max.ks1230/expenses-bot/internal/model/storage"
)

const historyLimit = 10

const (
	startCommand           = "/start"
	helpCommand            = "/help"
	ayudaCommand           = "/ayuda"
	menuCommandName        = "/menu"
	statsCommand           = "/stats"
	estadisticasCommand    = "/estadisticas"
	statsYearCommand       = "/stats_year"
	categoriesCommand      = "/categories"
	historyCommand         = "/history"
	verGastosCommand       = "/ver_gastos"
	deleteCommand          = "/delete"
	borrarCommand          = "/borrar"
	clearCommand           = "/clear"
	cancelCommand          = "/cancel"
	exportCommand          = "/export"
	scanEmailCommand       = "/buscar_facturas"
	connectEmailCommand    = "/conectar_email"
	disconnectEmailCommand = "/desconectar_email"
)

type handler func(ctx context.Context, req *request) error

type handlerMap map[string]handler

func newHandlerMap(s *Service) handlerMap {
	m := make(handlerMap)
	m[startCommand] = s.handleStart
	m[helpCommand] = s.handleHelp
	m[ayudaCommand] = s.handleHelp
	m[menuCommandName] = s.handleMenu
	m[statsCommand] = s.handleStats
	m[estadisticasCommand] = s.handleStats
	m[statsYearCommand] = s.handleStatsYear
	m[categoriesCommand] = s.handleCategories
	m[historyCommand] = s.handleHistory
	m[verGastosCommand] = s.handleHistory
	m[deleteCommand] = s.handleDelete
	m[borrarCommand] = s.handleDelete
	m[clearCommand] = s.handleClear
	m[cancelCommand] = s.handleCancel
	m[exportCommand] = s.handleExport
	m[scanEmailCommand] = s.handleScanEmail
	m[connectEmailCommand] = s.handleConnectEmail
	m[disconnectEmailCommand] = s.handleDisconnectEmail
	return m
}

func (s *Service) handleStart(_ context.Context, req *request) error {
	return s.sendf(req.msg.ChatID, welcomeMessage, html.EscapeString(req.user.DisplayName()))
}

func (s *Service) handleHelp(_ context.Context, req *request) error {
	return s.send(req.msg.ChatID, helpMessage)
}

func (s *Service) handleMenu(_ context.Context, req *request) error {
	_, err := s.client.SendMessage(req.msg.ChatID, menuMessage, menuKeyboard())
	return errors.Wrap(err, "send menu")
}

func (s *Service) handleStats(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	report, err := s.reports.CurrentMonth(ctx, req.user.ID)
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "handle stats")
	}
	if err = s.send(chatID, report.Text()); err != nil {
		return err
	}
	chart, err := report.PieChart()
	if err != nil {
		logger.Warn("cannot draw monthly chart", zap.Int64("userID", req.user.ID), zap.Error(err))
		return nil
	}
	if chart == nil {
		return nil
	}
	name := fmt.Sprintf("gastos-%s.png", report.Month.Format("2006-01"))
	return s.client.SendPhoto(chatID, name, chart, "")
}

func (s *Service) handleStatsYear(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	report, err := s.reports.CurrentYear(ctx, req.user.ID)
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "handle stats year")
	}
	if err = s.send(chatID, report.Text()); err != nil {
		return err
	}
	if report.Count == 0 {
		return nil
	}
	chart, err := report.BarChart()
	if err != nil {
		logger.Warn("cannot draw yearly chart", zap.Int64("userID", req.user.ID), zap.Error(err))
		return nil
	}
	return s.client.SendPhoto(chatID, fmt.Sprintf("gastos-%d.png", report.Year), chart, "")
}

func (s *Service) handleCategories(_ context.Context, req *request) error {
	var b strings.Builder
	b.WriteString(categoriesTitle)
	for _, c := range s.catalog.All() {
		b.WriteString(html.EscapeString(c.Label()))
		b.WriteByte('\n')
	}
	return s.send(req.msg.ChatID, strings.TrimSpace(b.String()))
}

func (s *Service) handleHistory(ctx context.Context, req *request) error {
	records, err := s.storage.ListExpenses(ctx, req.user.ID, time.Time{}, time.Time{}, historyLimit)
	if err != nil {
		_ = s.send(req.msg.ChatID, genericErrorMessage)
		return errors.Wrap(err, "handle history")
	}
	return s.send(req.msg.ChatID, reports.HistoryText(records, s.loc))
}

// handleDelete removes the n-th entry of the history list.
func (s *Service) handleDelete(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	n, err := strconv.Atoi(strings.TrimSpace(req.arg))
	if err != nil || n < 1 || n > historyLimit {
		return s.send(chatID, deleteUsageMessage)
	}

	records, err := s.storage.ListExpenses(ctx, req.user.ID, time.Time{}, time.Time{}, historyLimit)
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "handle delete")
	}
	if n > len(records) {
		return s.sendf(chatID, deleteMissMessage, n)
	}

	deleted, err := s.storage.DeleteExpense(ctx, req.user.ID, records[n-1].ID)
	if errors.Is(err, storagepkg.ErrNotFound) {
		return s.sendf(chatID, deleteMissMessage, n)
	}
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "handle delete")
	}
	s.reports.Invalidate(req.user.ID, deleted.SpentAt)
	s.journal.Record(ctx, journal.ExpenseDeleted, deleted)
	return s.sendf(chatID, deletedMessage, recordText(deleted))
}

func (s *Service) handleClear(_ context.Context, req *request) error {
	_, err := s.client.SendMessage(req.msg.ChatID, clearConfirmMessage, clearKeyboard())
	return errors.Wrap(err, "send clear confirmation")
}

func (s *Service) handleCancel(_ context.Context, req *request) error {
	// an interrupted candidate was already counted as discarded
	queued := req.sess.Reset()
	if queued > 0 {
		observeDiscarded(discardCancelled, queued)
	}
	dropped := queued + boolToInt(req.interrupted)
	if dropped == 0 {
		return s.send(req.msg.ChatID, nothingToCancelMessage)
	}
	return s.sendf(req.msg.ChatID, cancelledMessage, dropped, plural(dropped, "gasto pendiente", "gastos pendientes"))
}

func (s *Service) handleExport(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	format := strings.ToLower(strings.TrimSpace(req.arg))
	if format == "" {
		format = "csv"
	}

	var (
		data []byte
		n    int
		err  error
	)
	switch format {
	case "csv":
		data, n, err = s.reports.ExportCSV(ctx, req.user.ID)
	case "pdf":
		data, n, err = s.reports.ExportPDF(ctx, req.user.ID, req.user.DisplayName())
	default:
		return s.send(chatID, exportUsageMessage)
	}
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "handle export")
	}
	if n == 0 {
		return s.send(chatID, exportEmptyMessage)
	}
	name := fmt.Sprintf("gastos-%s.%s", time.Now().In(s.loc).Format("2006-01-02"), format)
	return s.client.SendDocument(chatID, name, data, fmt.Sprintf(exportCaption, n, plural(n, "gasto", "gastos")))
}

// handleScanEmail runs a scan right away and queues what it finds.
func (s *Service) handleScanEmail(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	if !req.user.EmailConnected() {
		return s.send(chatID, emailNotConnectedMessage)
	}
	if err := s.send(chatID, emailScanningMessage); err != nil {
		return err
	}

	candidates, err := s.scanner.Scan(ctx, req.user)
	switch {
	case errors.Is(err, mailbox.ErrScanInProgress):
		return s.send(chatID, emailBusyMessage)
	case errors.Is(err, imap.ErrAuth):
		return s.send(chatID, emailAuthFailedMessage)
	case err != nil:
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "scan email")
	}
	if len(candidates) == 0 {
		return s.send(chatID, emailNothingMessage)
	}
	req.sess.Enqueue(candidates...)
	return s.sendf(chatID, emailFoundMessage, len(candidates), plural(len(candidates), "factura", "facturas"))
}

func (s *Service) handleConnectEmail(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	fields := strings.Fields(req.arg)
	if len(fields) < 2 || !strings.Contains(fields[0], "@") {
		return s.send(chatID, emailUsageMessage)
	}
	// the message carries a password, it should not stay in the chat
	if err := s.client.DeleteMessage(chatID, req.msg.MessageID); err != nil {
		logger.Warn("cannot delete message with password", zap.Int64("userID", req.user.ID), zap.Error(err))
	}

	// Google shows app passwords in groups of four letters
	address, password := fields[0], strings.Join(fields[1:], "")
	err := s.mail.Verify(ctx, imap.Credentials{Address: address, Password: password})
	if errors.Is(err, imap.ErrAuth) {
		return s.send(chatID, emailAuthFailedMessage)
	}
	if err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "verify email")
	}
	if err = s.storage.SaveEmailCredentials(ctx, req.user.ID, address, password); err != nil {
		_ = s.send(chatID, genericErrorMessage)
		return errors.Wrap(err, "save email credentials")
	}
	logger.Info("email connected", zap.Int64("userID", req.user.ID))
	return s.sendf(chatID, emailConnectedMessage, html.EscapeString(address))
}

func (s *Service) handleDisconnectEmail(ctx context.Context, req *request) error {
	if !req.user.EmailConnected() {
		return s.send(req.msg.ChatID, emailNotConnectedMessage)
	}
	if err := s.storage.ClearEmailCredentials(ctx, req.user.ID); err != nil {
		_ = s.send(req.msg.ChatID, genericErrorMessage)
		return errors.Wrap(err, "clear email credentials")
	}
	return s.send(req.msg.ChatID, emailDisconnectedMessage)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
