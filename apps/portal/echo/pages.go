package echoportal

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/webapi"
)

type pageHandlers struct {
	store *session.Store
	api   *webapi.Service
}

type loginForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

const loginPageBody = `<form method="post" action="/login">
<input name="email" type="email" placeholder="Email">
<input name="password" type="password" placeholder="Password">
<button type="submit">Sign in</button>
</form>`

func (h *pageHandlers) home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, session.DashboardPath)
}

func (h *pageHandlers) loginPage(ctx echo.Context) error {
	// already signed in? straight to the landing page
	if st := h.store.Current(); st.Authenticated() {
		return ctx.Redirect(http.StatusFound, landingPath(st))
	}
	return ctx.HTML(http.StatusOK, loginPageBody)
}

func (h *pageHandlers) login(ctx echo.Context) error {
	var form loginForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}

	creds := user.Credentials{Email: form.Email, Password: form.Password}
	if ok := h.store.Login(ctx.Request().Context(), creds); !ok {
		// stay on the login view; showing the message is the view's concern
		return ctx.HTML(http.StatusOK, `<p>Sign in failed.</p>`+loginPageBody)
	}
	return ctx.Redirect(http.StatusFound, landingPath(h.store.Current()))
}

func (h *pageHandlers) logout(ctx echo.Context) error {
	h.store.Logout(ctx.Request().Context())
	return ctx.Redirect(http.StatusFound, session.LoginPath)
}

func (h *pageHandlers) dashboard(ctx echo.Context) error {
	st := h.store.Current()
	usr := st.User
	return ctx.HTML(http.StatusOK, fmt.Sprintf(
		`<h1>Karibu, %s!</h1><p>EXP: %d | Coins: %d | Rank: %d</p>`,
		usr.Username, usr.EXP, usr.Coins, usr.Rank,
	))
}

func (h *pageHandlers) mentorDashboard(ctx echo.Context) error {
	usr := h.store.Current().User
	return ctx.HTML(http.StatusOK, fmt.Sprintf(`<h1>Mentor dashboard</h1><p>%s</p>`, usr.Username))
}

func (h *pageHandlers) adminPanel(ctx echo.Context) error {
	usr := h.store.Current().User
	names := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		names = append(names, role.Name)
	}
	return ctx.HTML(http.StatusOK, fmt.Sprintf(
		`<h1>Admin panel</h1><p>%s (%s)</p><p>Roles: %s</p>`,
		usr.Username, usr.Role, strings.Join(names, ", "),
	))
}

func (h *pageHandlers) enroll(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "id", Error: "invalid course id"})
	}

	st := h.store.Current()
	if err := h.api.Enroll(ctx.Request().Context(), st.Token, courseID); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "enrollment failed")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

// landingPath picks the role-appropriate landing page.
func landingPath(st session.State) string {
	if st.User != nil && st.User.MentorTagged() {
		return session.MentorDashboardPath
	}
	return session.DashboardPath
}
