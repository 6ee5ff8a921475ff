package pgrec

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
	appfs "github.com/trezcool/elimu/fs"
)

type repository struct {
	db *sqlx.DB
}

var _ session.Repository = (*repository)(nil)

// NewRepository stores the session record in a single-row session_record
// table; the token/profile pair lives in one row so it can never be observed
// half-written.
func NewRepository(db *sqlx.DB) session.Repository {
	return &repository{db: db}
}

func Open(conf core.DatabaseConfig) (*sqlx.DB, error) {
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return sqlx.Open(conf.Engine, u.String())
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	return errors.Wrap(err, "DB ping timeout")
}

func Migrate(db *sql.DB) error {
	if err := goose.RunFS("up", db, appfs.FS, "migrations"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

func (repo *repository) SaveRecord(ctx context.Context, token string, usr user.User) error {
	userData, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO session_record (id, auth_token, user_data, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET auth_token = EXCLUDED.auth_token, user_data = EXCLUDED.user_data, updated_at = now()`,
		token, userData,
	)
	return errors.Wrap(err, "writing session record")
}

func (repo *repository) LoadRecord(ctx context.Context) (string, user.User, error) {
	var row struct {
		AuthToken string `db:"auth_token"`
		UserData  []byte `db:"user_data"`
	}
	err := repo.db.GetContext(ctx, &row, `SELECT auth_token, user_data FROM session_record WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", user.User{}, session.ErrNoRecord
		}
		return "", user.User{}, errors.Wrap(err, "reading session record")
	}
	if row.AuthToken == "" || len(row.UserData) == 0 {
		return "", user.User{}, session.ErrNoRecord
	}

	var usr user.User
	if err := json.Unmarshal(row.UserData, &usr); err != nil {
		return "", user.User{}, errors.Wrap(err, "decoding profile")
	}
	return row.AuthToken, usr, nil
}

func (repo *repository) ClearRecord(ctx context.Context) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM session_record WHERE id = 1`)
	return errors.Wrap(err, "clearing session record")
}
