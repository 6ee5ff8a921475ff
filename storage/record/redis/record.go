package redisrec

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
)

const (
	tokenKey = "authToken"
	userKey  = "userData"
)

type repository struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ session.Repository = (*repository)(nil)

// NewRepository stores the session record under "<prefix>:authToken" and
// "<prefix>:userData". Both keys are written and deleted together.
func NewRepository(rdb redis.UniversalClient, prefix string) session.Repository {
	return &repository{rdb: rdb, prefix: prefix}
}

// Open connects a redis client from config.
func Open(conf core.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

func (repo *repository) key(name string) string {
	return repo.prefix + ":" + name
}

func (repo *repository) SaveRecord(ctx context.Context, token string, usr user.User) error {
	userData, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}

	_, err = repo.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, repo.key(tokenKey), token, 0)
		pipe.Set(ctx, repo.key(userKey), userData, 0)
		return nil
	})
	return errors.Wrap(err, "writing session record")
}

func (repo *repository) LoadRecord(ctx context.Context) (string, user.User, error) {
	vals, err := repo.rdb.MGet(ctx, repo.key(tokenKey), repo.key(userKey)).Result()
	if err != nil {
		return "", user.User{}, errors.Wrap(err, "reading session record")
	}

	token, ok := vals[0].(string)
	if !ok || token == "" {
		return "", user.User{}, session.ErrNoRecord
	}
	userData, ok := vals[1].(string)
	if !ok || userData == "" {
		return "", user.User{}, session.ErrNoRecord
	}

	var usr user.User
	if err := json.Unmarshal([]byte(userData), &usr); err != nil {
		return "", user.User{}, errors.Wrap(err, "decoding profile")
	}
	return token, usr, nil
}

func (repo *repository) ClearRecord(ctx context.Context) error {
	err := repo.rdb.Del(ctx, repo.key(tokenKey), repo.key(userKey)).Err()
	return errors.Wrap(err, "clearing session record")
}
