package echoportal

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/guard"
	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
	metricsvc "github.com/trezcool/elimu/services/metrics"
	"github.com/trezcool/elimu/services/webapi"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		Store          *session.Store
		API            *webapi.Service
		Logger         core.Logger
		Metrics        *metricsvc.Service   // optional
		Gatherer       prometheus.Gatherer  // optional; enables /metrics
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger)
	s.app.Debug = s.opts.Debug

	pages := &pageHandlers{store: s.opts.Store, api: s.opts.API}
	gate := func(pol guard.Policy) echo.MiddlewareFunc {
		return guardMiddleware(s.opts.Store, pol, s.opts.Metrics)
	}

	s.app.GET("/", pages.home)
	s.app.GET(session.LoginPath, pages.loginPage, gate(guard.Public()))
	s.app.POST(session.LoginPath, pages.login)
	s.app.POST("/logout", pages.logout)

	s.app.GET(session.DashboardPath, pages.dashboard, gate(guard.NewPolicy()))
	s.app.GET(session.MentorDashboardPath, pages.mentorDashboard, gate(guard.NewPolicy(user.RoleMentor, user.RoleAdmin)))
	s.app.GET("/admin", pages.adminPanel, gate(guard.NewPolicy(user.RoleAdmin)))
	s.app.POST("/courses/:id/enroll", pages.enroll, gate(guard.NewPolicy()))

	if s.opts.Gatherer != nil {
		s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
