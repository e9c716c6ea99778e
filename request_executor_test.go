package adminclient

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skykeenentreprise/admin-client/mock"
)

const csrfPath = "/api/csrf-token/"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// newLoggedInClient returns a client holding a valid session and CSRF cookie,
// with the backend's request log cleared.
func newLoggedInClient(t *testing.T, b *mock.Backend, opts ...Option) *Client {
	t.Helper()
	c, err := New(b.URL(), opts...)
	require.NoError(t, err)

	ctx := context.Background()
	c.RefreshCSRFToken(ctx)
	_, err = c.Login(ctx, mock.DefaultEmail, mock.DefaultPassword)
	require.NoError(t, err)

	b.Reset()
	return c
}

func methodsAndPaths(reqs []mock.Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

func TestExecute_RetriesOnceAfterStaleToken(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	b.RotateCSRF()
	_, err := c.DeleteRegistration(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"DELETE /api/registrations/7/",
		"GET /api/csrf-token/",
		"DELETE /api/registrations/7/",
	}, methodsAndPaths(b.Requests()))

	reqs := b.Requests()
	assert.Equal(t, b.CSRFToken(), reqs[2].Header.Get(CSRFHeaderName), "retry carries the refreshed token")
	assert.NotEqual(t, reqs[0].Header.Get(CSRFHeaderName), reqs[2].Header.Get(CSRFHeaderName))

	_, found := b.Registration(7)
	assert.False(t, found)
}

func TestExecute_SecondForbiddenIsPropagated(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	b.SetForbidAlways(true)
	call := &Call{Method: http.MethodDelete, Path: registrationPath(7)}
	_, err := c.do(context.Background(), call)

	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.True(t, call.Retried())
	assert.Equal(t, stateTerminal, call.state)
	assert.Equal(t, 2, b.Hits(http.MethodDelete, "/api/registrations/7/"))
	assert.Equal(t, 1, b.Hits(http.MethodGet, csrfPath))
}

func TestExecute_RefreshFailureStillRetriesOnce(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	b.SetFailCSRFEndpoint(true)
	b.RotateCSRF()
	_, err := c.VerifyPayment(context.Background(), 7, true, nil)

	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, 2, b.Hits(http.MethodPatch, "/api/registrations/7/verify/"))
	assert.Equal(t, 1, b.Hits(http.MethodGet, csrfPath))
}

func TestExecute_ForbiddenGetIsRetriedOnce(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	b.SetForbidAlways(true)
	_, err := c.GetRegistrations(context.Background())

	require.Error(t, err)
	assert.Equal(t, 2, b.Hits(http.MethodGet, "/api/registrations/"))
	assert.Equal(t, 1, b.Hits(http.MethodGet, csrfPath))
}

func TestExecute_OtherFailuresAreNotRetried(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	_, err := c.GetRegistration(context.Background(), 999)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Equal(t, "/api/registrations/999/", httpErr.Path)
	assert.Contains(t, string(httpErr.Body), "Not found.")

	assert.Equal(t, 1, b.Hits(http.MethodGet, "/api/registrations/999/"))
	assert.Zero(t, b.Hits(http.MethodGet, csrfPath))
}

func TestExecute_TransportErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	boom := errors.New("connection reset")
	c, err := New("https://api.skykeenentreprise.com", WithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		attempts.Add(1)
		return nil, boom
	})))
	require.NoError(t, err)

	_, err = c.CheckAuth(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, StatusCode(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestExecute_CanceledContext(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c, err := New(b.URL())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetRegistrations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogin_WithoutTokenRecoversThroughRetry(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c, err := New(b.URL())
	require.NoError(t, err)

	_, err = c.Login(context.Background(), mock.DefaultEmail, mock.DefaultPassword)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/admin/login/",
		"GET /api/csrf-token/",
		"POST /api/admin/login/",
	}, methodsAndPaths(b.Requests()))
}

func TestLogout_NeverRetried(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	c := newLoggedInClient(t, b, WithLogger(zap.New(core).Sugar()))

	b.RotateCSRF()
	_, err := c.Logout(context.Background())

	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, 1, b.Hits(http.MethodPost, "/api/admin/logout/"))
	assert.Zero(t, b.Hits(http.MethodGet, csrfPath))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessageSnippet("logout rejected").Len())
}

func TestLogout_ForbidAlwaysNeverRetried(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c := newLoggedInClient(t, b)

	b.SetForbidAlways(true)
	_, err := c.Logout(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, b.Hits(http.MethodPost, "/api/admin/logout/"))
	assert.Zero(t, b.Hits(http.MethodGet, csrfPath))
}

func TestLogout_FetchesTokenWhenAbsent(t *testing.T) {
	b := mock.NewBackend()
	defer b.Close()
	c, err := New(b.URL())
	require.NoError(t, err)

	_, err = c.Logout(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"GET /api/csrf-token/",
		"POST /api/admin/logout/",
	}, methodsAndPaths(b.Requests()))
}

func TestShouldRetry(t *testing.T) {
	re := &RequestExecutor{}
	forbidden := &HTTPError{StatusCode: http.StatusForbidden}
	unauthorized := &HTTPError{StatusCode: http.StatusUnauthorized}

	tests := []struct {
		name  string
		call  *Call
		err   error
		retry bool
	}{
		{"forbidden initial", &Call{Path: "/api/registrations/"}, forbidden, true},
		{"forbidden already retried", &Call{Path: "/api/registrations/", state: stateRetried}, forbidden, false},
		{"forbidden terminal", &Call{Path: "/api/registrations/", state: stateTerminal}, forbidden, false},
		{"forbidden logout", &Call{Path: pathLogout}, forbidden, false},
		{"unauthorized", &Call{Path: "/api/registrations/"}, unauthorized, false},
		{"transport", &Call{Path: "/api/registrations/"}, errors.New("dial tcp: refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retry, re.shouldRetry(tt.call, tt.err))
		})
	}
}
