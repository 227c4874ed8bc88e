package journal

import (
	"context"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"max.ks1230/expenses-bot/internal/entity/expense"
	"max.ks1230/expenses-bot/internal/logger"
)

type Kind string

const (
	ExpenseCommitted Kind = "expense_committed"
	ExpenseDeleted   Kind = "expense_deleted"
	ExpensesCleared  Kind = "expenses_cleared"
)

type producer interface {
	ProduceMessage(key string, message []byte) error
}

// Journal publishes a protobuf event for every change to a user's expenses.
type Journal struct {
	producer producer
}

func New(producer producer) *Journal {
	return &Journal{producer: producer}
}

// Record publishes an event about a single expense.
func (j *Journal) Record(ctx context.Context, kind Kind, rec expense.Record) {
	j.publish(ctx, kind, rec.UserID, map[string]any{
		"expense_id":     rec.ID,
		"amount":         rec.Amount.StringFixed(2),
		"currency":       rec.Currency,
		"category":       rec.Category.Key,
		"payment_method": string(rec.PaymentMethod),
		"source":         string(rec.Source),
		"spent_at":       rec.SpentAt.UTC().Format(time.RFC3339),
	})
}

// Cleared publishes the removal of all the user's expenses.
func (j *Journal) Cleared(ctx context.Context, userID int64, count int64) {
	j.publish(ctx, ExpensesCleared, userID, map[string]any{"count": count})
}

// publish never fails the caller: the journal is best effort.
func (j *Journal) publish(ctx context.Context, kind Kind, userID int64, fields map[string]any) {
	if j == nil || j.producer == nil {
		return
	}
	span, _ := opentracing.StartSpanFromContext(ctx, "journal.publish")
	defer span.Finish()

	payload, err := Encode(kind, userID, time.Now(), fields)
	if err != nil {
		logger.Error("cannot encode journal event", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if err = j.producer.ProduceMessage(strconv.FormatInt(userID, 10), payload); err != nil {
		logger.Error("cannot publish journal event",
			zap.String("kind", string(kind)),
			zap.Int64("userID", userID),
			zap.Error(err))
	}
}

// Encode builds the wire form of an event: a protobuf Struct.
func Encode(kind Kind, userID int64, at time.Time, fields map[string]any) ([]byte, error) {
	body := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		body[k] = v
	}
	body["kind"] = string(kind)
	body["user_id"] = strconv.FormatInt(userID, 10)
	body["at"] = at.UTC().Format(time.RFC3339)

	event, err := structpb.NewStruct(body)
	if err != nil {
		return nil, errors.Wrap(err, "build event")
	}
	return proto.Marshal(event)
}

// Decode is the inverse of Encode, for consumers of the topic.
func Decode(payload []byte) (map[string]any, error) {
	var event structpb.Struct
	if err := proto.Unmarshal(payload, &event); err != nil {
		return nil, errors.Wrap(err, "unmarshal event")
	}
	return event.AsMap(), nil
}
