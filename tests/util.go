package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/elimu/core/user"
)

func NewUser(id int, uname, role string, mentor bool) user.User {
	return user.User{
		ID:        id,
		Username:  uname,
		Email:     uname + "@test.cd",
		Role:      role,
		IsMentor:  mentor,
		CreatedAt: time.Now().UTC(),
	}
}

// JSONDiff returns a unified diff of the JSON forms of want and got,
// or "" when they are equal.
func JSONDiff(t *testing.T, want, got interface{}) string {
	t.Helper()

	wantData, err := json.MarshalIndent(want, "", "  ")
	if err != nil {
		t.Fatalf("JSONDiff() failed: %v", err)
	}
	gotData, err := json.MarshalIndent(got, "", "  ")
	if err != nil {
		t.Fatalf("JSONDiff() failed: %v", err)
	}
	if string(wantData) == string(gotData) {
		return ""
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(wantData)),
		B:        difflib.SplitLines(string(gotData)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	if err != nil {
		t.Fatalf("JSONDiff() failed: %v", err)
	}
	return diff
}

// Eventually polls cond until it returns true or the deadline passes.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
