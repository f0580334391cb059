package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/florianilch/tasklet/cmd/tasklet/commands"
	"github.com/florianilch/tasklet/internal/exitcode"
	"github.com/florianilch/tasklet/internal/testutil"
)

// run executes tasklet against api with the password in TASKLET_PASSWORD.
func run(t *testing.T, api *testutil.FakeAPI, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("TASKLET_PASSWORD", testutil.Password)

	environ := func() []string {
		return []string{
			"TASKLET_API__BASE_URL=" + api.URL,
			"TASKLET_API__USERNAME=" + testutil.Username,
			"TASKLET_LOG_LEVEL=error",
		}
	}

	var outBuf, errBuf bytes.Buffer
	code = commands.Execute(context.Background(), append([]string{"tasklet"}, args...), commands.Streams{
		In:      strings.NewReader(stdin),
		Out:     &outBuf,
		ErrOut:  &errBuf,
		Environ: environ,
	})
	return outBuf.String(), errBuf.String(), code
}

func TestListCommand(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddTask("Buy milk", "", false)
	api.AddTask("Pay rent", "", true)

	stdout, stderr, code := run(t, api, "", "list")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	want := "   2  [x] Pay rent\n   1  [ ] Buy milk\n"
	if stdout != want {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestListCommandEmpty(t *testing.T) {
	api := testutil.NewFakeAPI(t)

	stdout, _, code := run(t, api, "", "list")
	if code != exitcode.Success || stdout != "no tasks found\n" {
		t.Errorf("list = %d %q", code, stdout)
	}

	stdout, _, code = run(t, api, "", "list", "--json")
	if code != exitcode.Success || strings.TrimSpace(stdout) != "[]" {
		t.Errorf("list --json = %d %q", code, stdout)
	}
}

func TestAddCommand(t *testing.T) {
	api := testutil.NewFakeAPI(t)

	stdout, stderr, code := run(t, api, "", "add", "--due", "2026-12-31", "--description", "2 litres", "Buy", "milk")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if stdout != "   1  [ ] Buy milk  (due 2026-12-31)\n" {
		t.Errorf("stdout = %q", stdout)
	}

	req, ok := api.LastRequest(http.MethodPost, "/api/tasks/")
	if !ok {
		t.Fatal("no create request")
	}
	want := `{"title":"Buy milk","description":"2 litres","completed":false,"due_date":"2026-12-31"}`
	if string(req.Body) != want {
		t.Errorf("body = %s, want %s", req.Body, want)
	}
}

func TestAddCommandUserErrors(t *testing.T) {
	api := testutil.NewFakeAPI(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no title", args: []string{"add"}},
		{name: "blank title", args: []string{"add", "   "}},
		{name: "bad due date", args: []string{"add", "--due", "31.12.2026", "Buy milk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := run(t, api, "", tt.args...)
			if code != exitcode.UserError {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, exitcode.UserError, stderr)
			}
			if !strings.HasPrefix(stderr, "error: ") {
				t.Errorf("stderr = %q, want an error line", stderr)
			}
		})
	}

	if _, ok := api.LastRequest(http.MethodPost, "/api/tasks/"); ok {
		t.Error("invalid input reached the service")
	}
}

func TestEditCommandSendsOnlySetFields(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddTask("Buy milk", "old", false)

	_, stderr, code := run(t, api, "", "edit", "--title", "Buy oat milk", "1")
	if code != exitcode.Success {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}

	req, _ := api.LastRequest(http.MethodPatch, "/api/tasks/1/")
	var fields map[string]any
	if err := json.Unmarshal(req.Body, &fields); err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields["title"] != "Buy oat milk" {
		t.Errorf("patch fields = %v, want only title", fields)
	}

	_, _, code = run(t, api, "", "edit", "1")
	if code != exitcode.UserError {
		t.Errorf("edit without flags exit code = %d, want %d", code, exitcode.UserError)
	}

	_, _, code = run(t, api, "", "edit", "--due", "2026-01-01", "--clear-due", "1")
	if code != exitcode.UserError {
		t.Errorf("edit --due --clear-due exit code = %d, want %d", code, exitcode.UserError)
	}
}

func TestToggleCommand(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddTask("Buy milk", "", false)

	stdout, stderr, code := run(t, api, "", "toggle", "1")
	if code != exitcode.Success {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if stdout != "   1  [x] Buy milk\n" {
		t.Errorf("stdout = %q", stdout)
	}

	req, _ := api.LastRequest(http.MethodPatch, "/api/tasks/1/")
	if string(req.Body) != `{"completed":true}` {
		t.Errorf("patch body = %s", req.Body)
	}
}

func TestShowAndRemove(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddTask("Buy milk", "2 litres", false)

	stdout, stderr, code := run(t, api, "", "show", "1")
	if code != exitcode.Success {
		t.Fatalf("show exit code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "description: 2 litres\n") {
		t.Errorf("show stdout = %q", stdout)
	}

	stdout, _, code = run(t, api, "", "rm", "1")
	if code != exitcode.Success || stdout != "deleted task 1\n" {
		t.Errorf("rm = %d %q", code, stdout)
	}

	_, stderr, code = run(t, api, "", "show", "1")
	if code != exitcode.RequestError {
		t.Errorf("show missing task exit code = %d, want %d", code, exitcode.RequestError)
	}
	if !strings.Contains(stderr, "No Task matches the given query.") {
		t.Errorf("stderr = %q, want the service's message", stderr)
	}
}

func TestInvalidTaskID(t *testing.T) {
	api := testutil.NewFakeAPI(t)

	for _, args := range [][]string{{"rm"}, {"rm", "abc"}, {"rm", "0"}, {"show", "1", "2"}} {
		_, _, code := run(t, api, "", args...)
		if code != exitcode.UserError {
			t.Errorf("%v exit code = %d, want %d", args, code, exitcode.UserError)
		}
	}
	if n := len(api.Requests()); n != 0 {
		t.Errorf("%d requests sent for invalid ids", n)
	}
}

func TestAuthenticationFailureExitCode(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.Password = "something-else"

	_, stderr, code := run(t, api, "", "list")
	if code != exitcode.AuthError {
		t.Errorf("exit code = %d, want %d (stderr %q)", code, exitcode.AuthError, stderr)
	}
	if strings.Contains(stderr, testutil.Password) {
		t.Error("stderr leaks the password")
	}
}

func TestMissingConfig(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var errBuf bytes.Buffer
	code := commands.Execute(context.Background(), []string{"tasklet", "list"}, commands.Streams{
		Out:     &bytes.Buffer{},
		ErrOut:  &errBuf,
		Environ: func() []string { return nil },
	})
	if code != exitcode.UserError {
		t.Errorf("exit code = %d, want %d", code, exitcode.UserError)
	}
	if !strings.Contains(errBuf.String(), "failed to load config") {
		t.Errorf("stderr = %q", errBuf.String())
	}
}

func TestLoginCommand(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	passwordFile := filepath.Join(t.TempDir(), "tasklet", "password")

	stdout, stderr, code := run(t, api, testutil.Password+"\n",
		"--config", writeConfig(t, `
[auth]
storage = "file"
file = "`+passwordFile+`"
`), "login")

	if code != exitcode.Success {
		t.Fatalf("exit code = %d, stderr = %q", code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("stdout = %q", stdout)
	}

	data, err := os.ReadFile(passwordFile)
	if err != nil {
		t.Fatalf("password file: %v", err)
	}
	if string(data) != testutil.Password+"\n" {
		t.Errorf("stored password = %q", data)
	}
	if api.TokenRequests() != 1 {
		t.Errorf("token requests = %d, want 1", api.TokenRequests())
	}
}

func TestLoginRejectsReadOnlyStorage(t *testing.T) {
	api := testutil.NewFakeAPI(t)

	_, stderr, code := run(t, api, "secret\n", "login")
	if code != exitcode.UserError {
		t.Errorf("exit code = %d, want %d", code, exitcode.UserError)
	}
	if !strings.Contains(stderr, "read-only") {
		t.Errorf("stderr = %q", stderr)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
