package filerec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
)

const recordFile = "session.json"

// record mirrors the browser-local storage layout: the raw token under
// "authToken" and the profile as a serialized JSON string under "userData".
type record struct {
	Token string `json:"authToken"`
	User  string `json:"userData"`
}

type repository struct {
	mu   sync.Mutex
	path string
}

var _ session.Repository = (*repository)(nil)

// NewRepository stores the session record as a JSON file under dir.
// This is the default backend: the closest analog of a browser profile.
func NewRepository(dir string) session.Repository {
	return &repository{path: filepath.Join(dir, recordFile)}
}

func (repo *repository) SaveRecord(_ context.Context, token string, usr user.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	userData, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	data, err := json.Marshal(record{Token: token, User: string(userData)})
	if err != nil {
		return errors.Wrap(err, "encoding session record")
	}

	if err := os.MkdirAll(filepath.Dir(repo.path), 0o700); err != nil {
		return errors.Wrap(err, "creating record dir")
	}

	// write-then-rename so the token/profile pair is never observable half-written
	tmp := repo.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "writing session record")
	}
	return errors.Wrap(os.Rename(tmp, repo.path), "committing session record")
}

func (repo *repository) LoadRecord(_ context.Context) (string, user.User, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	data, err := os.ReadFile(repo.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", user.User{}, session.ErrNoRecord
		}
		return "", user.User{}, errors.Wrap(err, "reading session record")
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", user.User{}, errors.Wrap(err, "decoding session record")
	}
	if rec.Token == "" || rec.User == "" {
		return "", user.User{}, session.ErrNoRecord
	}

	var usr user.User
	if err := json.Unmarshal([]byte(rec.User), &usr); err != nil {
		return "", user.User{}, errors.Wrap(err, "decoding profile")
	}
	return rec.Token, usr, nil
}

func (repo *repository) ClearRecord(_ context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if err := os.Remove(repo.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "clearing session record")
	}
	return nil
}
