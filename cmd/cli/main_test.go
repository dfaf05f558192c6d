package main

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/mockapi"
	"github.com/aryan0dhankhar/churchconsole/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	apiURL string
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock := mockapi.New(mockapi.Config{}, nil)
	require.NoError(t, mock.SeedDemo())
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(func() {
		srv.Close()
		mock.Close()
	})
	return &harness{apiURL: srv.URL, dir: t.TempDir()}
}

// run executes one CLI invocation, each with a fresh process state
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{
		out:    &out,
		errOut: &errOut,
		loadConfig: func() (*config.Config, error) {
			return &config.Config{
				ServerPort:       8080,
				APIBaseURL:       h.apiURL,
				APITimeout:       5 * time.Second,
				RefreshThreshold: time.Minute,
				RefreshTimeout:   5 * time.Second,
				StorageBackend:   config.StorageFile,
				StorageDir:       h.dir,
				StorageSecret:    "cli-test-secret",
			}, nil
		},
	}
	root := newRootCmd(c)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLISessionLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")

	out, err = h.run(t, "auth", "login", "--email", "admin@example.org", "--password", mockapi.DemoPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Admin")

	// the session survives into the next invocation
	out, err = h.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Admin")
	assert.Contains(t, out, "Token expires")

	out, err = h.run(t, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = h.run(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestCLILoginRejected(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "auth", "login", "--email", "admin@example.org", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")

	_, err = h.run(t, "auth", "login", "--email", "admin@example.org")
	assert.Error(t, err)
}

func TestCLIContextCommands(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "auth", "login", "--email", "leader@example.org", "--password", mockapi.DemoPassword)
	require.NoError(t, err)

	out, err := h.run(t, "context", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "North Church")
	assert.Contains(t, out, "Youth")

	_, err = h.run(t, "context", "use-church", "2")
	require.NoError(t, err)

	// the selection persists and the ministry followed the church
	out, err = h.run(t, "api", "get", "/members")
	require.NoError(t, err)
	assert.Contains(t, out, `"churchId": "2"`)
	assert.Contains(t, out, `"ministryId": "20"`)

	_, err = h.run(t, "context", "use-church", "99")
	assert.Error(t, err)

	_, err = h.run(t, "context", "use-ministry", "none")
	require.NoError(t, err)
	out, err = h.run(t, "api", "get", "/members")
	require.NoError(t, err)
	assert.Contains(t, out, `"ministryId": null`)
}

func TestCLIRequiresSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "api", "get", "/me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	_, err = h.run(t, "context", "show")
	assert.Error(t, err)
}
