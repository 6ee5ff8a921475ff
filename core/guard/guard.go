package guard

import (
	"sync"

	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
)

// Policy declares what a route requires of the current session.
// The zero AllowedRoles means "any authenticated role".
type Policy struct {
	RequiresAuth bool
	AllowedRoles []string
}

// NewPolicy returns an authenticated-only policy restricted to the given
// roles (none = any authenticated role).
func NewPolicy(roles ...string) Policy {
	return Policy{RequiresAuth: true, AllowedRoles: roles}
}

// Public returns a policy that gates nothing.
func Public() Policy { return Policy{} }

type Verdict int

const (
	// Loading: the session is still restoring; show a neutral placeholder and
	// take no navigation action.
	Loading Verdict = iota
	// Authorized: render the guarded content.
	Authorized
	// Redirecting: render nothing; navigation to Decision.RedirectTo was requested.
	Redirecting
)

type Decision struct {
	Verdict    Verdict
	RedirectTo string // set iff Verdict == Redirecting
}

// Evaluate gates a route against the current session state:
//
//  1. still loading -> Loading
//  2. auth required but no session -> redirect to the login entry point
//  3. role not in the allow-list -> redirect to the role-appropriate landing page
//  4. otherwise -> Authorized
//
// A token without its profile counts as no session in step 2: the store only
// ever commits the pair together, so a lone token is not a usable session and
// guarded views need the profile to render.
func Evaluate(st session.State, pol Policy) Decision {
	if st.Loading {
		return Decision{Verdict: Loading}
	}
	if pol.RequiresAuth && (!st.Authenticated() || st.User == nil) {
		return Decision{Verdict: Redirecting, RedirectTo: session.LoginPath}
	}
	if st.Authenticated() && st.User != nil && len(pol.AllowedRoles) > 0 {
		if !roleAllowed(*st.User, pol.AllowedRoles) {
			if st.User.MentorTagged() {
				return Decision{Verdict: Redirecting, RedirectTo: session.MentorDashboardPath}
			}
			return Decision{Verdict: Redirecting, RedirectTo: session.DashboardPath}
		}
	}
	return Decision{Verdict: Authorized}
}

func roleAllowed(usr user.User, allowed []string) bool {
	for _, role := range allowed {
		if usr.Role == role {
			return true
		}
		// Admin-gated routes deliberately admit mentor-tagged users as well;
		// do not "fix" this without changing the portals that rely on it.
		if role == user.RoleAdmin && usr.MentorTagged() {
			return true
		}
	}
	return false
}

// Watch evaluates pol against every session state change and feeds each
// Decision to handler. A Redirecting decision is terminal: the watcher
// unsubscribes itself, mirroring a view unmounting on navigation. The
// returned func stops watching early.
func Watch(store *session.Store, pol Policy, handler func(Decision)) (stop func()) {
	var (
		mu      sync.Mutex
		unsub   func()
		stopped bool
	)
	halt := func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			stopped = true
			if unsub != nil {
				unsub()
			}
		}
	}
	deliver := func(st session.State) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		mu.Unlock()

		d := Evaluate(st, pol)
		handler(d)
		if d.Verdict == Redirecting {
			halt()
		}
	}
	mu.Lock()
	unsub = store.Subscribe(deliver)
	mu.Unlock()
	deliver(store.Current())
	return halt
}

// Redirector adapts a Navigator into a Watch handler that forwards redirects.
func Redirector(nav session.Navigator) func(Decision) {
	return func(d Decision) {
		if d.Verdict == Redirecting {
			nav.To(d.RedirectTo)
		}
	}
}
