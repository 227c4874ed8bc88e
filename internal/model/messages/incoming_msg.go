package messages

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/clients/imap"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/entity/user"
	"max.ks1230/expenses-bot/internal/logger"
	"max.ks1230/expenses-bot/internal/model/conversation"
	"max.ks1230/expenses-bot/internal/model/journal"
	"max.ks1230/expenses-bot/internal/model/parser"
	"max.ks1230/expenses-bot/internal/model/reports"
	"max.ks1230/expenses-bot/internal/model/voice"
)

type messageSender interface {
	SendMessage(chatID int64, text string, kb *Keyboard) (int, error)
	EditMessage(chatID int64, messageID int, text string, kb *Keyboard) error
	DeleteMessage(chatID int64, messageID int) error
	SendPhoto(chatID int64, name string, data []byte, caption string) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	AnswerCallback(callbackID, text string) error
}

type storage interface {
	EnsureUser(ctx context.Context, profile user.Profile) (user.Record, error)
	SaveEmailCredentials(ctx context.Context, id int64, address, appPassword string) error
	ClearEmailCredentials(ctx context.Context, id int64) error
	SaveExpense(ctx context.Context, rec expense.Record) (expense.Record, error)
	ListExpenses(ctx context.Context, userID int64, from, to time.Time, limit int) ([]expense.Record, error)
	DeleteExpense(ctx context.Context, userID, id int64) (expense.Record, error)
	DeleteUserExpenses(ctx context.Context, userID int64) (int64, error)
}

type expenseParser interface {
	Parse(ctx context.Context, text string, source expense.Source) (expense.Candidate, error)
}

type transcriber interface {
	Transcribe(ctx context.Context, fileID string) (string, error)
}

type reporter interface {
	CurrentMonth(ctx context.Context, userID int64) (reports.MonthlyReport, error)
	CurrentYear(ctx context.Context, userID int64) (reports.YearlyReport, error)
	Invalidate(userID int64, at time.Time)
	InvalidateCurrent(userID int64)
	ExportCSV(ctx context.Context, userID int64) ([]byte, int, error)
	ExportPDF(ctx context.Context, userID int64, holder string) ([]byte, int, error)
}

type mailScanner interface {
	Scan(ctx context.Context, u user.Record) ([]expense.Candidate, error)
}

type mailVerifier interface {
	Verify(ctx context.Context, creds imap.Credentials) error
}

type eventJournal interface {
	Record(ctx context.Context, kind journal.Kind, rec expense.Record)
	Cleared(ctx context.Context, userID int64, count int64)
}

type config interface {
	AllowedUserIDs() []int64
	Location() *time.Location
}

// Deps are the collaborators of the conversation handler.
type Deps struct {
	Client      messageSender
	Storage     storage
	Parser      expenseParser
	Transcriber transcriber
	Reports     reporter
	Scanner     mailScanner
	Mail        mailVerifier
	Journal     eventJournal
	Catalog     *expense.Catalog
}

type Service struct {
	client      messageSender
	storage     storage
	parser      expenseParser
	transcriber transcriber
	reports     reporter
	scanner     mailScanner
	mail        mailVerifier
	journal     eventJournal
	catalog     *expense.Catalog
	sessions    *conversation.Store
	handlers    handlerMap
	allowed     map[int64]struct{}
	loc         *time.Location
}

func NewService(config config, deps Deps) *Service {
	s := &Service{
		client:      deps.Client,
		storage:     deps.Storage,
		parser:      deps.Parser,
		transcriber: deps.Transcriber,
		reports:     deps.Reports,
		scanner:     deps.Scanner,
		mail:        deps.Mail,
		journal:     deps.Journal,
		catalog:     deps.Catalog,
		sessions:    conversation.NewStore(),
		allowed:     make(map[int64]struct{}),
		loc:         config.Location(),
	}
	for _, id := range config.AllowedUserIDs() {
		s.allowed[id] = struct{}{}
	}
	s.handlers = newHandlerMap(s)
	return s
}

// isAllowed lets everybody in when no allowlist is configured.
func (s *Service) isAllowed(userID int64) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[userID]
	return ok
}

// request is one incoming message being handled under its chat's session lock.
type request struct {
	msg         Message
	user        user.Record
	sess        *conversation.Session
	arg         string
	interrupted bool
}

func (s *Service) HandleIncomingMessage(ctx context.Context, msg Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "handleMessage")
	defer span.Finish()

	start := time.Now()
	err := s.handleMessage(ctx, msg)
	observeResponse("message", time.Since(start), err != nil)
	if err != nil {
		ext.Error.Set(span, true)
	}
	return err
}

func (s *Service) handleMessage(ctx context.Context, msg Message) error {
	if !s.isAllowed(msg.UserID) {
		logger.Warn("message from user outside allowlist", zap.Int64("userID", msg.UserID))
		if cmd, _ := parseCommand(msg.Text); cmd == startCommand {
			return s.send(msg.ChatID, forbiddenMessage)
		}
		return nil
	}

	u, err := s.storage.EnsureUser(ctx, msg.profile())
	if err != nil {
		_ = s.send(msg.ChatID, genericErrorMessage)
		return errors.Wrap(err, "ensure user")
	}

	return s.sessions.Do(msg.ChatID, func(sess *conversation.Session) error {
		req := &request{msg: msg, user: u, sess: sess}
		req.interrupted = s.interrupt(msg.ChatID, sess)

		err := s.route(ctx, req)
		s.advance(msg.ChatID, sess)
		return err
	})
}

func (s *Service) route(ctx context.Context, req *request) error {
	msg := req.msg
	if msg.VoiceFileID != "" {
		return s.handleVoice(ctx, req)
	}

	text := msg.Text
	if cmd, ok := menuCommand(text); ok {
		text = cmd
	}
	cmd, arg := parseCommand(text)
	if len(cmd) > 0 && cmd[0] == '/' {
		handler, ok := s.handlers[cmd]
		if !ok {
			return s.send(msg.ChatID, unknownCommandMessage)
		}
		req.arg = arg
		logger.Info("command", zap.Int64("userID", msg.UserID), zap.String("command", cmd))
		return handler(ctx, req)
	}
	return s.handleExpense(ctx, req, msg.Text, expense.SourceText)
}

// interrupt discards a candidate that was waiting for an answer when new input arrived.
func (s *Service) interrupt(chatID int64, sess *conversation.Session) bool {
	c, messageID, ok := sess.Interrupt()
	if !ok {
		return false
	}
	observeDiscarded(discardInterrupted, 1)
	if messageID != 0 {
		if err := s.client.EditMessage(chatID, messageID, candidateText(interruptedTitle, c, s.loc), nil); err != nil {
			logger.Warn("cannot update discarded card", zap.Int64("chatID", chatID), zap.Error(err))
		}
	}
	return true
}

func (s *Service) handleVoice(ctx context.Context, req *request) error {
	chatID := req.msg.ChatID
	text, err := s.transcriber.Transcribe(ctx, req.msg.VoiceFileID)
	if errors.Is(err, voice.ErrEmptyTranscription) {
		return s.send(chatID, emptyVoiceMessage)
	}
	if err != nil {
		_ = s.send(chatID, voiceErrorMessage)
		return errors.Wrap(err, "transcribe voice")
	}
	if err = s.sendf(chatID, transcriptMessage, html.EscapeString(text)); err != nil {
		return err
	}
	return s.handleExpense(ctx, req, text, expense.SourceVoice)
}

// handleExpense parses free text and asks the user to confirm the result.
func (s *Service) handleExpense(ctx context.Context, req *request, text string, source expense.Source) error {
	chatID := req.msg.ChatID
	logger.Info("Parse expense - start", zap.Int64("userID", req.user.ID), zap.String("source", string(source)))
	defer logger.Info("Parse expense - end", zap.Int64("userID", req.user.ID))

	c, err := s.parser.Parse(ctx, text, source)
	if errors.Is(err, parser.ErrEmptyText) {
		return s.send(chatID, emptyTextMessage)
	}
	if err != nil {
		_ = s.send(chatID, parserDownMessage)
		return errors.Wrap(err, "parse expense")
	}
	// the model may flag text that is not an expense even when it found a number
	if c.NeedsClarification || !c.Amount.IsPositive() {
		if c.ClarificationQuestion == "" {
			return s.send(chatID, emptyTextMessage)
		}
		return s.send(chatID, "🤔 "+html.EscapeString(c.ClarificationQuestion))
	}
	return s.propose(req.sess, chatID, c)
}

// propose shows the confirmation card of c and waits for the answer.
func (s *Service) propose(sess *conversation.Session, chatID int64, c expense.Candidate) error {
	if err := sess.Propose(c); err != nil {
		return errors.Wrap(err, "propose expense")
	}
	messageID, err := s.client.SendMessage(chatID, candidateText(confirmTitle, c, s.loc), confirmKeyboard(c))
	if err != nil {
		return errors.Wrap(err, "send confirmation")
	}
	sess.SetMessageID(messageID)
	return nil
}

// advance presents the next queued email candidate once the chat is idle.
func (s *Service) advance(chatID int64, sess *conversation.Session) {
	c, ok := sess.Advance()
	if !ok {
		return
	}
	if left := sess.Queued(); left > 0 {
		_ = s.sendf(chatID, queuedMessage, left+1, plural(left+1, "factura", "facturas"))
	}
	messageID, err := s.client.SendMessage(chatID, candidateText(confirmTitle, c, s.loc), confirmKeyboard(c))
	if err != nil {
		logger.Error("cannot send queued candidate", zap.Int64("chatID", chatID), zap.Error(err))
		return
	}
	sess.SetMessageID(messageID)
}

// DeliverEmailCandidates queues invoices found by the mailbox poller. Users
// talk to the bot in private chats, so the chat id is the user id.
func (s *Service) DeliverEmailCandidates(ctx context.Context, userID int64, candidates []expense.Candidate) error {
	if len(candidates) == 0 || !s.isAllowed(userID) {
		return nil
	}
	span, _ := opentracing.StartSpanFromContext(ctx, "deliverEmailCandidates")
	defer span.Finish()

	return s.sessions.Do(userID, func(sess *conversation.Session) error {
		sess.Enqueue(candidates...)
		err := s.sendf(userID, emailFoundMessage, len(candidates), plural(len(candidates), "factura", "facturas"))
		s.advance(userID, sess)
		return err
	})
}

func (s *Service) send(chatID int64, text string) error {
	_, err := s.client.SendMessage(chatID, text, nil)
	return errors.Wrap(err, "send message")
}

func (s *Service) sendf(chatID int64, format string, args ...any) error {
	return s.send(chatID, fmt.Sprintf(format, args...))
}
