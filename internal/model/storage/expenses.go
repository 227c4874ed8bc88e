package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

type expenseRow struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	AmountCents     int64     `db:"amount_cents"`
	Currency        string    `db:"currency"`
	Description     string    `db:"description"`
	Merchant        string    `db:"merchant"`
	PaymentMethod   string    `db:"payment_method"`
	Source          string    `db:"source"`
	OriginalMessage string    `db:"original_message"`
	SpentAt         time.Time `db:"spent_at"`
	CreatedAt       time.Time `db:"created_at"`
	CategorySlug    string    `db:"category_slug"`
	CategoryName    string    `db:"category_name"`
	CategoryEmoji   string    `db:"category_emoji"`
}

var expenseColumns = []string{
	"e.id", "e.user_id", "e.amount_cents", "e.currency", "e.description", "e.merchant",
	"e.payment_method", "e.source", "e.original_message", "e.spent_at", "e.created_at",
	"c.slug AS category_slug", "c.name AS category_name", "c.emoji AS category_emoji",
}

func (r expenseRow) record() expense.Record {
	return expense.Record{
		ID:              r.ID,
		UserID:          r.UserID,
		Amount:          fromCents(r.AmountCents),
		Currency:        r.Currency,
		Category:        expense.Category{Key: r.CategorySlug, Name: r.CategoryName, Emoji: r.CategoryEmoji},
		Description:     r.Description,
		Merchant:        r.Merchant,
		PaymentMethod:   expense.PaymentMethod(r.PaymentMethod),
		Source:          expense.Source(r.Source),
		OriginalMessage: r.OriginalMessage,
		SpentAt:         r.SpentAt,
		CreatedAt:       r.CreatedAt,
	}
}

func toCents(amount decimal.Decimal) int64 {
	return expense.RoundAmount(amount).Shift(2).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// fitsCents reports whether amount is representable in the amount_cents column.
func fitsCents(amount decimal.Decimal) bool {
	return expense.RoundAmount(amount).Shift(2).BigInt().IsInt64()
}

// SaveExpense persists a confirmed expense and returns it with its id.
// The category must be an active catalog category, anything else is
// ErrUnknownCategory.
func (s *SQLStorage) SaveExpense(ctx context.Context, rec expense.Record) (expense.Record, error) {
	if rec.Amount.IsNegative() || !fitsCents(rec.Amount) || rec.UserID == 0 || rec.Currency == "" {
		return expense.Record{}, ErrInvalidExpense
	}
	if !rec.PaymentMethod.Valid() || !rec.Source.Valid() {
		return expense.Record{}, ErrInvalidExpense
	}
	if rec.SpentAt.IsZero() {
		rec.SpentAt = time.Now()
	}
	rec.Amount = expense.RoundAmount(rec.Amount)
	rec.SpentAt = dbTime(rec.SpentAt)
	rec.CreatedAt = dbTime(time.Now())

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		category, err := s.findCategory(ctx, tx, rec.Category.Key)
		if err != nil {
			return err
		}
		rec.Category = category.category()

		query, args, err := s.builder.Insert("expenses").
			Columns("user_id", "category_id", "amount_cents", "currency", "description", "merchant",
				"payment_method", "source", "original_message", "spent_at", "created_at").
			Values(rec.UserID, category.ID, toCents(rec.Amount), rec.Currency, rec.Description, rec.Merchant,
				string(rec.PaymentMethod), string(rec.Source), rec.OriginalMessage, rec.SpentAt, rec.CreatedAt).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "save expense")
		}
		return errors.Wrap(tx.QueryRowxContext(ctx, query, args...).Scan(&rec.ID), "save expense")
	})
	if err != nil {
		return expense.Record{}, err
	}
	return rec, nil
}

func (s *SQLStorage) findCategory(ctx context.Context, tx *sqlx.Tx, slug string) (categoryRow, error) {
	query, args, err := s.builder.Select("id", "slug", "name", "emoji").
		From("categories").
		Where(sq.Eq{"slug": slug, "active": true}).
		ToSql()
	if err != nil {
		return categoryRow{}, errors.Wrap(err, "find category")
	}
	var row categoryRow
	if err = tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return categoryRow{}, ErrUnknownCategory
		}
		return categoryRow{}, errors.Wrap(err, "find category")
	}
	return row, nil
}

func (s *SQLStorage) selectExpenses() sq.SelectBuilder {
	return s.builder.Select(expenseColumns...).
		From("expenses e").
		Join("categories c ON c.id = e.category_id")
}

// period narrows a query to [from, to). Zero bounds are open.
func period(q sq.SelectBuilder, from, to time.Time) sq.SelectBuilder {
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{"e.spent_at": dbTime(from)})
	}
	if !to.IsZero() {
		q = q.Where(sq.Lt{"e.spent_at": dbTime(to)})
	}
	return q
}

// ListExpenses returns the user's expenses in [from, to), newest first.
// A zero limit returns all of them.
func (s *SQLStorage) ListExpenses(ctx context.Context, userID int64, from, to time.Time, limit int) ([]expense.Record, error) {
	q := period(s.selectExpenses().Where(sq.Eq{"e.user_id": userID}), from, to).
		OrderBy("e.spent_at DESC", "e.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "list expenses")
	}

	var rows []expenseRow
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list expenses")
	}
	res := make([]expense.Record, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.record())
	}
	return res, nil
}

type categoryTotalRow struct {
	Slug  string `db:"slug"`
	Name  string `db:"name"`
	Emoji string `db:"emoji"`
	Cents int64  `db:"total_cents"`
	Count int    `db:"expense_count"`
}

// SumByCategory aggregates the user's expenses in [from, to), biggest total first.
func (s *SQLStorage) SumByCategory(ctx context.Context, userID int64, from, to time.Time) ([]expense.CategoryTotal, error) {
	q := s.builder.Select("c.slug", "c.name", "c.emoji",
		"SUM(e.amount_cents) AS total_cents", "COUNT(*) AS expense_count").
		From("expenses e").
		Join("categories c ON c.id = e.category_id").
		Where(sq.Eq{"e.user_id": userID})
	query, args, err := period(q, from, to).
		GroupBy("c.slug", "c.name", "c.emoji").
		OrderBy("total_cents DESC", "c.slug").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "sum by category")
	}

	var rows []categoryTotalRow
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "sum by category")
	}
	res := make([]expense.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		res = append(res, expense.CategoryTotal{
			Category: expense.Category{Key: r.Slug, Name: r.Name, Emoji: r.Emoji},
			Total:    fromCents(r.Cents),
			Count:    r.Count,
		})
	}
	return res, nil
}

// DeleteExpense removes one of the user's expenses and returns what was removed.
func (s *SQLStorage) DeleteExpense(ctx context.Context, userID, id int64) (expense.Record, error) {
	var deleted expense.Record
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := s.selectExpenses().
			Where(sq.Eq{"e.id": id, "e.user_id": userID}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "delete expense")
		}
		var row expenseRow
		if err = tx.GetContext(ctx, &row, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return errors.Wrap(err, "delete expense")
		}

		_, err = s.builder.Delete("expenses").
			Where(sq.Eq{"id": id, "user_id": userID}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return errors.Wrap(err, "delete expense")
		}
		deleted = row.record()
		return nil
	})
	return deleted, err
}

// DeleteUserExpenses wipes every expense of the user and reports how many were removed.
func (s *SQLStorage) DeleteUserExpenses(ctx context.Context, userID int64) (int64, error) {
	res, err := s.builder.Delete("expenses").
		Where(sq.Eq{"user_id": userID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "delete user expenses")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "delete user expenses")
}
