package storage

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"max.ks1230/expenses-bot/internal/entity/user"
)

type userRow struct {
	ID               int64        `db:"id"`
	Username         string       `db:"username"`
	FirstName        string       `db:"first_name"`
	EmailAddress     string       `db:"email_address"`
	EmailAppPassword string       `db:"email_app_password"`
	EmailAutoCheck   bool         `db:"email_auto_check"`
	EmailLastChecked sql.NullTime `db:"email_last_checked"`
	CreatedAt        time.Time    `db:"created_at"`
}

var userColumns = []string{
	"id", "username", "first_name", "email_address", "email_app_password",
	"email_auto_check", "email_last_checked", "created_at",
}

func (r userRow) record() user.Record {
	rec := user.Record{
		ID:               r.ID,
		Username:         r.Username,
		FirstName:        r.FirstName,
		EmailAddress:     r.EmailAddress,
		EmailAppPassword: r.EmailAppPassword,
		EmailAutoCheck:   r.EmailAutoCheck,
		CreatedAt:        r.CreatedAt,
	}
	if r.EmailLastChecked.Valid {
		rec.EmailLastChecked = r.EmailLastChecked.Time
	}
	return rec
}

// EnsureUser registers the sender on first contact and refreshes the profile afterwards.
func (s *SQLStorage) EnsureUser(ctx context.Context, profile user.Profile) (user.Record, error) {
	query := s.builder.Insert("users").
		Columns("id", "username", "first_name", "created_at").
		Values(profile.ID, profile.Username, profile.FirstName, dbTime(time.Now())).
		Suffix("ON CONFLICT (id) DO UPDATE SET username = excluded.username, first_name = excluded.first_name")

	if _, err := query.RunWith(s.db).ExecContext(ctx); err != nil {
		return user.Record{}, errors.Wrap(err, "ensure user")
	}
	return s.GetUser(ctx, profile.ID)
}

func (s *SQLStorage) GetUser(ctx context.Context, id int64) (user.Record, error) {
	query, args, err := s.builder.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return user.Record{}, errors.Wrap(err, "get user")
	}

	var row userRow
	if err = s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.Record{}, ErrNotFound
		}
		return user.Record{}, errors.Wrap(err, "get user")
	}
	return row.record(), nil
}

// SaveEmailCredentials stores the mailbox login and turns automatic checks on.
func (s *SQLStorage) SaveEmailCredentials(ctx context.Context, id int64, address, appPassword string) error {
	return s.updateUser(ctx, id, "save email credentials", map[string]any{
		"email_address":      address,
		"email_app_password": appPassword,
		"email_auto_check":   true,
	})
}

func (s *SQLStorage) ClearEmailCredentials(ctx context.Context, id int64) error {
	return s.updateUser(ctx, id, "clear email credentials", map[string]any{
		"email_address":      "",
		"email_app_password": "",
		"email_auto_check":   false,
		"email_last_checked": nil,
	})
}

func (s *SQLStorage) TouchEmailChecked(ctx context.Context, id int64, at time.Time) error {
	return s.updateUser(ctx, id, "touch email checked", map[string]any{
		"email_last_checked": dbTime(at),
	})
}

func (s *SQLStorage) updateUser(ctx context.Context, id int64, op string, values map[string]any) error {
	res, err := s.builder.Update("users").
		SetMap(values).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UsersWithEmailAutoCheck lists users whose mailbox the poller should scan.
func (s *SQLStorage) UsersWithEmailAutoCheck(ctx context.Context) ([]user.Record, error) {
	query, args, err := s.builder.Select(userColumns...).
		From("users").
		Where(sq.And{
			sq.Eq{"email_auto_check": true},
			sq.NotEq{"email_address": ""},
			sq.NotEq{"email_app_password": ""},
		}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "users with email")
	}

	var rows []userRow
	if err = s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "users with email")
	}
	res := make([]user.Record, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.record())
	}
	return res, nil
}
