package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"max.ks1230/expenses-bot/internal/entity/expense"
)

type categoryRow struct {
	ID    int64  `db:"id"`
	Slug  string `db:"slug"`
	Name  string `db:"name"`
	Emoji string `db:"emoji"`
}

func (r categoryRow) category() expense.Category {
	return expense.Category{Key: r.Slug, Name: r.Name, Emoji: r.Emoji}
}

// SyncCategories upserts the catalog. Categories dropped from the catalog stay
// in the table so old expenses keep their category, but they are retired and
// no new expense may use them.
func (s *SQLStorage) SyncCategories(ctx context.Context, categories []expense.Category) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		slugs := make([]string, 0, len(categories))
		for _, c := range categories {
			_, err := s.builder.Insert("categories").
				Columns("slug", "name", "emoji", "active").
				Values(c.Key, c.Name, c.Emoji, true).
				Suffix("ON CONFLICT (slug) DO UPDATE SET name = excluded.name, emoji = excluded.emoji, active = excluded.active").
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return errors.Wrapf(err, "sync category %s", c.Key)
			}
			slugs = append(slugs, c.Key)
		}

		_, err := s.builder.Update("categories").
			Set("active", false).
			Where(sq.NotEq{"slug": slugs}).
			RunWith(tx).
			ExecContext(ctx)
		return errors.Wrap(err, "retire categories")
	})
}

func (s *SQLStorage) ListCategories(ctx context.Context) ([]expense.Category, error) {
	query, args, err := s.builder.Select("id", "slug", "name", "emoji").
		From("categories").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}

	var rows []categoryRow
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	res := make([]expense.Category, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.category())
	}
	return res, nil
}
