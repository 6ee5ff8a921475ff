package session

import (
	"context"
	"errors"

	"github.com/trezcool/elimu/core/user"
)

// Navigation entry points. The store and guard only ever request navigation
// to these; rendering them is the host's concern.
const (
	LoginPath           = "/login"
	DashboardPath       = "/dashboard"
	MentorDashboardPath = "/mentor/dashboard"
)

var (
	// errors
	ErrNoRecord = errors.New("no session record")
)

type (
	// Repository persists the session record: the authToken/userData pair.
	// Implementations must write and clear both parts together; a half-written
	// record must never be observable.
	Repository interface {
		SaveRecord(ctx context.Context, token string, usr user.User) error
		// LoadRecord returns ErrNoRecord when either part is absent.
		LoadRecord(ctx context.Context) (string, user.User, error)
		ClearRecord(ctx context.Context) error
	}

	// Client calls the remote authentication and profile endpoints.
	// The session store is its only caller.
	Client interface {
		Login(ctx context.Context, creds user.Credentials) (string, user.User, error)
		FetchProfile(ctx context.Context, token string) (user.User, error)
	}

	// Navigator receives navigation requests (a path from the constants above).
	Navigator interface {
		To(path string)
	}

	// Recorder observes session events; see services/metrics.
	Recorder interface {
		LoginSucceeded()
		LoginFailed()
		ProfileRefreshed()
		StaleRefreshDiscarded()
		LoggedOut()
	}
)

// State is an immutable snapshot of the session.
type State struct {
	Token   string
	User    *user.User
	Loading bool
}

// Authenticated is derived: a session exists iff a token is held.
func (st State) Authenticated() bool { return st.Token != "" }

func (st State) clone() State {
	if st.User != nil {
		u := st.User.Clone()
		st.User = &u
	}
	return st
}

type nopNavigator struct{}

func (nopNavigator) To(string) {}

type nopRecorder struct{}

func (nopRecorder) LoginSucceeded()        {}
func (nopRecorder) LoginFailed()           {}
func (nopRecorder) ProfileRefreshed()      {}
func (nopRecorder) StaleRefreshDiscarded() {}
func (nopRecorder) LoggedOut()             {}
