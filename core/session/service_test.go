package session

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
	testutil "github.com/trezcool/elimu/tests"
)

// fakeAPI implements Client.
type fakeAPI struct {
	mu           sync.Mutex
	token        string
	usr          user.User
	loginErr     error
	profileUsr   user.User
	profileErr   error
	loginCalls   int
	profileCalls int

	// when set, FetchProfile signals profileStarted then blocks until
	// profileGate is closed
	profileGate    chan struct{}
	profileStarted chan struct{}
}

func (f *fakeAPI) Login(_ context.Context, _ user.Credentials) (string, user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return "", user.User{}, f.loginErr
	}
	return f.token, f.usr, nil
}

func (f *fakeAPI) FetchProfile(_ context.Context, _ string) (user.User, error) {
	f.mu.Lock()
	gate, started := f.profileGate, f.profileStarted
	f.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profileErr != nil {
		return user.User{}, f.profileErr
	}
	return f.profileUsr, nil
}

func (f *fakeAPI) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.profileCalls
}

// fakeRepo implements Repository.
type fakeRepo struct {
	mu     sync.Mutex
	saved  bool
	token  string
	usr    user.User
	clears int
}

func (r *fakeRepo) SaveRecord(_ context.Context, token string, usr user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved, r.token, r.usr = true, token, usr
	return nil
}

func (r *fakeRepo) LoadRecord(_ context.Context) (string, user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saved {
		return "", user.User{}, ErrNoRecord
	}
	return r.token, r.usr, nil
}

func (r *fakeRepo) ClearRecord(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved, r.token, r.usr = false, "", user.User{}
	r.clears++
	return nil
}

func (r *fakeRepo) record() (bool, string, user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, r.token, r.usr
}

type fakeNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNav) To(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *fakeNav) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

type fakeRecorder struct {
	mu                             sync.Mutex
	success, failure, refresh      int
	staleDiscarded, logouts        int
}

func (r *fakeRecorder) LoginSucceeded()   { r.mu.Lock(); r.success++; r.mu.Unlock() }
func (r *fakeRecorder) LoginFailed()      { r.mu.Lock(); r.failure++; r.mu.Unlock() }
func (r *fakeRecorder) ProfileRefreshed() { r.mu.Lock(); r.refresh++; r.mu.Unlock() }
func (r *fakeRecorder) StaleRefreshDiscarded() {
	r.mu.Lock()
	r.staleDiscarded++
	r.mu.Unlock()
}
func (r *fakeRecorder) LoggedOut() { r.mu.Lock(); r.logouts++; r.mu.Unlock() }

func (r *fakeRecorder) stale() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleDiscarded
}

func setup(t *testing.T) (*Store, *fakeAPI, *fakeRepo, *fakeNav, *fakeRecorder) {
	t.Helper()
	api := &fakeAPI{}
	repo := &fakeRepo{}
	nav := &fakeNav{}
	rec := &fakeRecorder{}
	store := NewStore(&Options{
		API:       api,
		Repo:      repo,
		Logger:    core.NewStdLogger(log.New(io.Discard, "", 0)),
		Navigator: nav,
		Recorder:  rec,
	})
	return store, api, repo, nav, rec
}

func login(t *testing.T, store *Store, api *fakeAPI, token string, usr user.User) {
	t.Helper()
	api.mu.Lock()
	api.token, api.usr, api.loginErr = token, usr, nil
	api.mu.Unlock()
	if ok := store.Login(context.Background(), user.Credentials{Email: usr.Email, Password: "x"}); !ok {
		t.Fatal("login() failed")
	}
}

func TestStore_Restore_noRecord(t *testing.T) {
	store, api, _, _, _ := setup(t)

	if st := store.Current(); !st.Loading {
		t.Error("a fresh store must report loading until restored")
	}

	store.Restore(context.Background())

	st := store.Current()
	if st.Authenticated() {
		t.Error("Authenticated() = true; want false")
	}
	if st.User != nil {
		t.Errorf("User = %+v; want nil", st.User)
	}
	if st.Loading {
		t.Error("Loading = true after restore; want false")
	}
	if _, profileCalls := api.calls(); profileCalls != 0 {
		t.Errorf("profile fetched %d times with no record; want 0", profileCalls)
	}
}

func TestStore_Restore_adoptsRecordThenReconciles(t *testing.T) {
	store, api, repo, _, _ := setup(t)

	stale := testutil.NewUser(1, "bob", user.RoleStudent, false)
	fresh := stale
	fresh.EXP = 420
	_ = repo.SaveRecord(context.Background(), "T1", stale)
	api.profileUsr = fresh

	store.Restore(context.Background())

	// the record is adopted synchronously, before any network roundtrip
	st := store.Current()
	if !st.Authenticated() || st.Token != "T1" {
		t.Fatalf("Token = %q; want T1", st.Token)
	}
	if st.Loading {
		t.Error("Loading = true after restore; want false")
	}
	if st.User.EXP != stale.EXP {
		t.Errorf("User.EXP = %d right after restore; want the persisted %d", st.User.EXP, stale.EXP)
	}

	// the background refresh replaces the profile wholesale and re-persists it
	testutil.Eventually(t, func() bool {
		return store.Current().User.EXP == fresh.EXP
	}, "profile was never reconciled with the server")
	if _, _, savedUsr := repo.record(); savedUsr.EXP != fresh.EXP {
		t.Errorf("persisted EXP = %d; want %d", savedUsr.EXP, fresh.EXP)
	}
}

func TestStore_Login_success(t *testing.T) {
	store, api, repo, _, rec := setup(t)
	store.Restore(context.Background())

	bob := testutil.NewUser(1, "bob", user.RoleStudent, false)
	api.token, api.usr = "T1", bob

	ok := store.Login(context.Background(), user.Credentials{Email: "a@b.com", Password: "x"})
	if !ok {
		t.Fatal("Login() = false; want true")
	}

	st := store.Current()
	if !st.Authenticated() {
		t.Error("Authenticated() = false; want true")
	}
	if st.User.Username != "bob" {
		t.Errorf("User.Username = %q; want bob", st.User.Username)
	}
	if st.User.Role != user.RoleStudent {
		t.Errorf("User.Role = %q; want %q", st.User.Role, user.RoleStudent)
	}
	if st.Loading {
		t.Error("Loading = true after login; want false")
	}

	saved, token, savedUsr := repo.record()
	if !saved || token != "T1" {
		t.Errorf("persisted token = %q; want T1", token)
	}
	if diff := testutil.JSONDiff(t, bob, savedUsr); diff != "" {
		t.Errorf("persisted profile mismatch:\n%s", diff)
	}
	if rec.success != 1 {
		t.Errorf("recorded %d successful logins; want 1", rec.success)
	}
}

func TestStore_Login_failureLeavesStateUntouched(t *testing.T) {
	store, api, repo, _, _ := setup(t)
	store.Restore(context.Background())
	login(t, store, api, "T1", testutil.NewUser(1, "bob", user.RoleStudent, false))

	before := store.Current()
	savedBefore, tokenBefore, usrBefore := repo.record()

	api.mu.Lock()
	api.loginErr = context.DeadlineExceeded // any failure looks the same to callers
	api.mu.Unlock()

	if ok := store.Login(context.Background(), user.Credentials{Email: "a@b.com", Password: "nope"}); ok {
		t.Fatal("Login() = true; want false")
	}

	after := store.Current()
	if diff := testutil.JSONDiff(t, before, after); diff != "" {
		t.Errorf("state changed across a failed login:\n%s", diff)
	}
	savedAfter, tokenAfter, usrAfter := repo.record()
	if savedAfter != savedBefore || tokenAfter != tokenBefore {
		t.Error("persisted record changed across a failed login")
	}
	if diff := testutil.JSONDiff(t, usrBefore, usrAfter); diff != "" {
		t.Errorf("persisted profile changed across a failed login:\n%s", diff)
	}
}

func TestStore_Login_invalidCredentialsSkipNetwork(t *testing.T) {
	store, api, _, _, _ := setup(t)
	store.Restore(context.Background())

	tests := []struct {
		name  string
		creds user.Credentials
	}{
		{"missing email", user.Credentials{Password: "x"}},
		{"malformed email", user.Credentials{Email: "nope", Password: "x"}},
		{"missing password", user.Credentials{Email: "a@b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ok := store.Login(context.Background(), tt.creds); ok {
				t.Error("Login() = true; want false")
			}
		})
	}
	if loginCalls, _ := api.calls(); loginCalls != 0 {
		t.Errorf("API called %d times for invalid credentials; want 0", loginCalls)
	}
}

func TestStore_Login_loadingClearedExactlyOnce(t *testing.T) {
	store, api, _, _, _ := setup(t)
	store.Restore(context.Background())
	api.token, api.usr = "T1", testutil.NewUser(1, "bob", user.RoleStudent, false)

	var mu sync.Mutex
	var seen []bool
	unsub := store.Subscribe(func(st State) {
		mu.Lock()
		seen = append(seen, st.Loading)
		mu.Unlock()
	})
	defer unsub()

	if ok := store.Login(context.Background(), user.Credentials{Email: "a@b.com", Password: "x"}); !ok {
		t.Fatal("Login() failed")
	}

	mu.Lock()
	defer mu.Unlock()
	var ups, downs int
	prev := false
	for _, loading := range seen {
		if loading && !prev {
			ups++
		}
		if !loading && prev {
			downs++
		}
		prev = loading
	}
	assert.Equal(t, 1, ups, "loading must be raised exactly once per login")
	assert.Equal(t, 1, downs, "loading must be cleared exactly once per login")
}

func TestStore_Logout(t *testing.T) {
	store, api, repo, nav, rec := setup(t)
	store.Restore(context.Background())
	login(t, store, api, "T1", testutil.NewUser(1, "bob", user.RoleStudent, false))

	store.Logout(context.Background())

	st := store.Current()
	if st.Authenticated() {
		t.Error("Authenticated() = true after logout; want false")
	}
	if st.User != nil {
		t.Errorf("User = %+v after logout; want nil", st.User)
	}
	if saved, _, _ := repo.record(); saved {
		t.Error("persisted record survived logout")
	}
	if nav.last() != LoginPath {
		t.Errorf("navigated to %q; want %q", nav.last(), LoginPath)
	}

	// idempotent: a second logout only re-emits the navigation signal
	store.Logout(context.Background())
	if rec.logouts != 1 {
		t.Errorf("recorded %d logouts; want 1", rec.logouts)
	}
	if len(nav.paths) != 2 {
		t.Errorf("navigation signalled %d times; want 2", len(nav.paths))
	}
}

func TestStore_RefreshProfile_noToken(t *testing.T) {
	store, api, _, _, _ := setup(t)
	store.Restore(context.Background())

	store.RefreshProfile(context.Background())

	if _, profileCalls := api.calls(); profileCalls != 0 {
		t.Errorf("profile fetched %d times without a token; want 0", profileCalls)
	}
}

func TestStore_RefreshProfile_failureKeepsSession(t *testing.T) {
	store, api, repo, _, _ := setup(t)
	store.Restore(context.Background())
	bob := testutil.NewUser(1, "bob", user.RoleStudent, false)
	login(t, store, api, "T1", bob)

	api.mu.Lock()
	api.profileErr = context.DeadlineExceeded
	api.mu.Unlock()

	store.RefreshProfile(context.Background())

	// stale-but-present: neither the profile nor the token is dropped
	st := store.Current()
	if st.Token != "T1" {
		t.Errorf("Token = %q after failed refresh; want T1", st.Token)
	}
	if diff := testutil.JSONDiff(t, &bob, st.User); diff != "" {
		t.Errorf("profile changed across a failed refresh:\n%s", diff)
	}
	if saved, _, _ := repo.record(); !saved {
		t.Error("persisted record dropped on a failed refresh")
	}
}

func TestStore_RefreshProfile_staleResponseAfterLogout(t *testing.T) {
	store, api, repo, _, rec := setup(t)
	store.Restore(context.Background())
	login(t, store, api, "T1", testutil.NewUser(1, "bob", user.RoleStudent, false))

	gate, started := make(chan struct{}), make(chan struct{}, 1)
	api.mu.Lock()
	api.profileGate, api.profileStarted = gate, started
	api.profileUsr = testutil.NewUser(1, "bob", user.RoleStudent, false)
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		store.RefreshProfile(context.Background())
		close(done)
	}()
	<-started // the fetch is in flight before we log out

	store.Logout(context.Background())
	close(gate) // the in-flight response now resolves, too late
	<-done

	st := store.Current()
	if st.Authenticated() {
		t.Error("a stale profile response reanimated the session")
	}
	if st.User != nil {
		t.Errorf("User = %+v; want nil", st.User)
	}
	if saved, _, _ := repo.record(); saved {
		t.Error("a stale profile response was re-persisted after logout")
	}
	if rec.stale() != 1 {
		t.Errorf("recorded %d stale discards; want 1", rec.stale())
	}
}

func TestStore_RefreshProfile_staleResponseAfterRelogin(t *testing.T) {
	store, api, _, _, rec := setup(t)
	store.Restore(context.Background())
	login(t, store, api, "T1", testutil.NewUser(1, "bob", user.RoleStudent, false))

	gate, started := make(chan struct{}), make(chan struct{}, 1)
	api.mu.Lock()
	api.profileGate, api.profileStarted = gate, started
	api.profileUsr = testutil.NewUser(1, "bob-stale", user.RoleStudent, false)
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		store.RefreshProfile(context.Background())
		close(done)
	}()
	<-started

	// a different session takes over while the fetch is in flight
	api.mu.Lock()
	api.profileGate, api.profileStarted = nil, nil
	api.mu.Unlock()
	login(t, store, api, "T2", testutil.NewUser(2, "eve", user.RoleTeacher, false))
	close(gate)
	<-done

	st := store.Current()
	if st.Token != "T2" || st.User.Username != "eve" {
		t.Errorf("state = (%q, %q); want the newer session (T2, eve)", st.Token, st.User.Username)
	}
	if rec.stale() != 1 {
		t.Errorf("recorded %d stale discards; want 1", rec.stale())
	}
}

func TestStore_Subscribe_unsubscribeStopsNotifications(t *testing.T) {
	store, api, _, _, _ := setup(t)
	store.Restore(context.Background())

	var mu sync.Mutex
	var count int
	unsub := store.Subscribe(func(State) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	login(t, store, api, "T1", testutil.NewUser(1, "bob", user.RoleStudent, false))
	mu.Lock()
	seen := count
	mu.Unlock()
	if seen == 0 {
		t.Fatal("subscriber never notified")
	}

	unsub()
	store.Logout(context.Background())
	mu.Lock()
	defer mu.Unlock()
	if count != seen {
		t.Errorf("subscriber notified %d more times after unsubscribe", count-seen)
	}
}

func TestStore_snapshotsAreIsolated(t *testing.T) {
	store, api, _, _, _ := setup(t)
	store.Restore(context.Background())
	bob := testutil.NewUser(1, "bob", user.RoleStudent, false)
	bob.Interests = []string{"space"}
	login(t, store, api, "T1", bob)

	st := store.Current()
	st.User.Username = "mallory"
	st.User.Interests[0] = "chaos"

	fresh := store.Current()
	if fresh.User.Username != "bob" || fresh.User.Interests[0] != "space" {
		t.Error("mutating a snapshot leaked into the store")
	}
}
