package inmemrec

import (
	"context"
	"sync"

	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
)

type repository struct {
	mu    sync.RWMutex
	saved bool
	token string
	usr   user.User
}

var _ session.Repository = (*repository)(nil)

// NewRepository returns a process-local session record store. It is the
// default in TEST mode and backs hosts that opt out of persistence.
func NewRepository() session.Repository {
	return &repository{}
}

func (repo *repository) SaveRecord(_ context.Context, token string, usr user.User) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.saved = true
	repo.token = token
	repo.usr = usr.Clone()
	return nil
}

func (repo *repository) LoadRecord(_ context.Context) (string, user.User, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	if !repo.saved || repo.token == "" {
		return "", user.User{}, session.ErrNoRecord
	}
	return repo.token, repo.usr.Clone(), nil
}

func (repo *repository) ClearRecord(_ context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.saved = false
	repo.token = ""
	repo.usr = user.User{}
	return nil
}
