package record

import (
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	filerec "github.com/trezcool/elimu/storage/record/file"
	inmemrec "github.com/trezcool/elimu/storage/record/inmem"
	pgrec "github.com/trezcool/elimu/storage/record/postgres"
	redisrec "github.com/trezcool/elimu/storage/record/redis"
)

// Open wires the session record backend selected in config. The returned
// close func releases any underlying connection.
func Open(conf *core.Config) (session.Repository, func() error, error) {
	noClose := func() error { return nil }

	switch conf.Record.Backend {
	case core.RecordBackendInMem:
		return inmemrec.NewRepository(), noClose, nil

	case core.RecordBackendFile:
		return filerec.NewRepository(conf.Record.Path), noClose, nil

	case core.RecordBackendRedis:
		rdb := redisrec.Open(conf.Record.Redis)
		return redisrec.NewRepository(rdb, conf.AppName), rdb.Close, nil

	case core.RecordBackendPostgres:
		db, err := pgrec.Open(conf.Record.Database)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening database")
		}
		if err := pgrec.Ping(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := pgrec.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return pgrec.NewRepository(db), db.Close, nil
	}
	return nil, nil, errors.Errorf("unknown record backend %q", conf.Record.Backend)
}
