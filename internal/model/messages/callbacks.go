package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
	"max.ks1230/expenses-bot/internal/model/conversation"
	"max.ks1230/expenses-bot/internal/model/journal"
)

func (s *Service) HandleCallback(ctx context.Context, cb Callback) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "handleCallback")
	defer span.Finish()

	start := time.Now()
	err := s.handleCallback(ctx, cb)
	observeResponse("callback", time.Since(start), err != nil)
	if err != nil {
		ext.Error.Set(span, true)
	}
	return err
}

func (s *Service) handleCallback(ctx context.Context, cb Callback) error {
	if !s.isAllowed(cb.UserID) {
		logger.Warn("callback from user outside allowlist", zap.Int64("userID", cb.UserID))
		return s.client.AnswerCallback(cb.ID, "")
	}
	action, id, value := parseCallback(cb.Data)

	if action == actionClear {
		return s.handleClearAnswer(ctx, cb, id)
	}

	return s.sessions.Do(cb.ChatID, func(sess *conversation.Session) error {
		var err error
		switch action {
		case actionConfirm:
			err = s.confirm(ctx, sess, cb, id)
		case actionReject:
			err = s.reject(sess, cb, id)
		case actionPickCat:
			err = s.amend(sess, cb, id, nil, true)
		case actionBack:
			err = s.amend(sess, cb, id, nil, false)
		case actionSetCat:
			cat, ok := s.catalog.ByKey(value)
			if !ok {
				return s.client.AnswerCallback(cb.ID, stalePendingAnswer)
			}
			err = s.amend(sess, cb, id, func(c *expense.Candidate) { c.Category = cat }, false)
		case actionPayment:
			method, ok := expense.ParsePaymentMethod(value)
			if !ok {
				return s.client.AnswerCallback(cb.ID, stalePendingAnswer)
			}
			err = s.amend(sess, cb, id, func(c *expense.Candidate) { c.PaymentMethod = method }, false)
		default:
			logger.Warn("unknown callback", zap.String("data", cb.Data))
			return s.client.AnswerCallback(cb.ID, "")
		}
		s.advance(cb.ChatID, sess)
		return err
	})
}

// stale answers presses on cards that are no longer pending.
func (s *Service) stale(cb Callback, err error) (bool, error) {
	if errors.Is(err, conversation.ErrNoPending) || errors.Is(err, conversation.ErrStaleCandidate) {
		return true, s.client.AnswerCallback(cb.ID, stalePendingAnswer)
	}
	return false, nil
}

func (s *Service) confirm(ctx context.Context, sess *conversation.Session, cb Callback, id string) error {
	logger.Info("Confirm expense - start", zap.Int64("userID", cb.UserID))
	defer logger.Info("Confirm expense - end", zap.Int64("userID", cb.UserID))

	var saved expense.Record
	c, err := sess.Accept(id, func(c expense.Candidate) error {
		var err error
		saved, err = s.storage.SaveExpense(ctx, c.Record(cb.UserID))
		return err
	})
	if ok, answerErr := s.stale(cb, err); ok {
		return answerErr
	}
	if err != nil {
		_ = s.client.AnswerCallback(cb.ID, "")
		_ = s.send(cb.ChatID, saveFailedMessage)
		return errors.Wrap(err, "save expense")
	}

	observeCommitted(c.Source)
	s.reports.Invalidate(cb.UserID, saved.SpentAt)
	s.journal.Record(ctx, journal.ExpenseCommitted, saved)

	_ = s.client.AnswerCallback(cb.ID, savedAnswer)
	return s.client.EditMessage(cb.ChatID, cb.MessageID, candidateText(committedTitle, c, s.loc), nil)
}

func (s *Service) reject(sess *conversation.Session, cb Callback, id string) error {
	c, err := sess.Reject(id)
	if ok, answerErr := s.stale(cb, err); ok {
		return answerErr
	}
	if err != nil {
		return errors.Wrap(err, "reject expense")
	}
	observeDiscarded(discardRejected, 1)
	_ = s.client.AnswerCallback(cb.ID, cancelledAnswer)
	return s.client.EditMessage(cb.ChatID, cb.MessageID, candidateText(rejectedTitle, c, s.loc), nil)
}

// amend applies fn to the pending candidate, a nil fn only redraws the card.
func (s *Service) amend(sess *conversation.Session, cb Callback, id string, fn func(*expense.Candidate), pickCategory bool) error {
	if fn == nil {
		fn = func(*expense.Candidate) {}
	}
	c, err := sess.Amend(id, fn)
	if ok, answerErr := s.stale(cb, err); ok {
		return answerErr
	}
	if err != nil {
		return errors.Wrap(err, "amend expense")
	}
	_ = s.client.AnswerCallback(cb.ID, "")

	title, kb := confirmTitle, confirmKeyboard(c)
	if pickCategory {
		title, kb = pickCategoryTitle, categoryKeyboard(c, s.catalog)
	}
	return s.client.EditMessage(cb.ChatID, cb.MessageID, candidateText(title, c, s.loc), kb)
}

func (s *Service) handleClearAnswer(ctx context.Context, cb Callback, value string) error {
	if value != clearConfirmValue {
		_ = s.client.AnswerCallback(cb.ID, "")
		return s.client.EditMessage(cb.ChatID, cb.MessageID, clearKeptMessage, nil)
	}

	n, err := s.storage.DeleteUserExpenses(ctx, cb.UserID)
	if err != nil {
		_ = s.client.AnswerCallback(cb.ID, "")
		_ = s.send(cb.ChatID, genericErrorMessage)
		return errors.Wrap(err, "clear expenses")
	}
	logger.Info("expenses cleared", zap.Int64("userID", cb.UserID), zap.Int64("count", n))
	s.reports.InvalidateCurrent(cb.UserID)
	s.journal.Cleared(ctx, cb.UserID, n)

	_ = s.client.AnswerCallback(cb.ID, "")
	return s.client.EditMessage(cb.ChatID, cb.MessageID,
		fmt.Sprintf(clearedMessage, n, plural(int(n), "gasto", "gastos")), nil)
}
