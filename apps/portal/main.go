package main

import (
	"context"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	echoportal "github.com/trezcool/elimu/apps/portal/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	logsvc "github.com/trezcool/elimu/services/logger"
	metricsvc "github.com/trezcool/elimu/services/metrics"
	"github.com/trezcool/elimu/services/webapi"
	"github.com/trezcool/elimu/storage/record"
)

// build is set during compilation (-ldflags "-X main.build=...")
var build = "develop"

func main() {
	std := log.New(os.Stdout, "PORTAL : ", log.LstdFlags|log.Lshortfile)

	conf, err := core.NewConfig(build)
	errAndDie(std, err)

	var logger core.Logger
	if conf.Debug || conf.TestMode {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up the session record backend
	repo, closeRepo, err := record.Open(conf)
	errAndDie(std, err)
	defer func() { _ = closeRepo() }()

	// set up services
	api := webapi.NewService(conf.API, logger)
	registry := prometheus.NewRegistry()
	metrics := metricsvc.NewService(registry)

	store := session.NewStore(&session.Options{
		API:      api,
		Repo:     repo,
		Logger:   logger,
		Recorder: metrics,
	})
	store.Restore(context.Background())

	// start the portal
	app := echoportal.NewServer(&echoportal.Options{
		Address:  conf.Portal.Address(),
		Debug:    conf.Debug,
		TestMode: conf.TestMode,
		Store:    store,
		API:      api,
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: registry,
	})
	app.Start()
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
