package metricsvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/elimu/core/session"
)

const namespace = "elimu"

// Service counts session and guard events for the portal's /metrics endpoint.
type Service struct {
	loginSuccess        prometheus.Counter
	loginFailure        prometheus.Counter
	profileRefresh      prometheus.Counter
	staleRefreshDiscard prometheus.Counter
	logout              prometheus.Counter
	guardRedirects      *prometheus.CounterVec
}

var _ session.Recorder = (*Service)(nil)

func NewService(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)
	return &Service{
		loginSuccess: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "login_success_total",
			Help: "Successful logins.",
		}),
		loginFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "login_failure_total",
			Help: "Failed logins (transport and authorization failures alike).",
		}),
		profileRefresh: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "profile_refresh_total",
			Help: "Profile refreshes committed.",
		}),
		staleRefreshDiscard: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "stale_refresh_discarded_total",
			Help: "Profile responses discarded because the token changed in flight.",
		}),
		logout: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "logout_total",
			Help: "Logouts of an active session.",
		}),
		guardRedirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "guard", Name: "redirect_total",
			Help: "Guard redirects by target path.",
		}, []string{"target"}),
	}
}

func (svc *Service) LoginSucceeded()        { svc.loginSuccess.Inc() }
func (svc *Service) LoginFailed()           { svc.loginFailure.Inc() }
func (svc *Service) ProfileRefreshed()      { svc.profileRefresh.Inc() }
func (svc *Service) StaleRefreshDiscarded() { svc.staleRefreshDiscard.Inc() }
func (svc *Service) LoggedOut()             { svc.logout.Inc() }

func (svc *Service) GuardRedirected(target string) {
	svc.guardRedirects.WithLabelValues(target).Inc()
}
