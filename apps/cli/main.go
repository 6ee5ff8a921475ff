package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/services/webapi"
	"github.com/trezcool/elimu/storage/record"
)

// build is set during compilation (-ldflags "-X main.build=...")
var build = "develop"

func main() {
	std := log.New(os.Stdout, "ELIMU : ", log.LstdFlags)

	conf, err := core.NewConfig(build)
	errAndDie(std, err)

	var logger core.Logger
	if conf.Debug || conf.TestMode {
		logger = core.NewStdLogger(std)
		logger.Enable(false) // keep command output clean
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	repo, closeRepo, err := record.Open(conf)
	errAndDie(std, err)
	defer func() { _ = closeRepo() }()

	api := webapi.NewService(conf.API, logger)
	store := session.NewStore(&session.Options{
		API:    api,
		Repo:   repo,
		Logger: logger,
	})

	ctx := context.Background()
	store.Restore(ctx)

	cli := &commandLine{store: store, api: api}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			std.Fatal(err)
		}
		os.Exit(2)
	}
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
