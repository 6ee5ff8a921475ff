package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core/guard"
	"github.com/trezcool/elimu/core/session"
	metricsvc "github.com/trezcool/elimu/services/metrics"
)

// guardMiddleware maps guard decisions onto HTTP: a still-loading session gets
// a neutral placeholder, a redirect decision becomes a 302, and only an
// authorized decision reaches the handler.
func guardMiddleware(store *session.Store, pol guard.Policy, metrics *metricsvc.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			switch d := guard.Evaluate(store.Current(), pol); d.Verdict {
			case guard.Loading:
				return ctx.String(http.StatusOK, "Loading...")
			case guard.Redirecting:
				if metrics != nil {
					metrics.GuardRedirected(d.RedirectTo)
				}
				return ctx.Redirect(http.StatusFound, d.RedirectTo)
			default:
				return next(ctx)
			}
		}
	}
}
