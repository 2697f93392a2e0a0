package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/maildispatch/config"
	"github.com/jonwraymond/maildispatch/email"
	"github.com/jonwraymond/maildispatch/provider"
	"github.com/jonwraymond/maildispatch/secret"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Dispatch.PollIntervalMs = 1
	cfg.Observe.Metrics.Enabled = false
	cfg.Observe.Logging.Enabled = false
	return cfg
}

func okProvider(name string) provider.Provider {
	return provider.Func(name, func(context.Context, email.Message) (email.Result, error) {
		return email.NewResult(name, time.Now()), nil
	})
}

func failingProvider(name string) provider.Provider {
	return provider.Func(name, func(context.Context, email.Message) (email.Result, error) {
		return email.Result{}, errors.New("relay down")
	})
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	a.Dispatcher().Start(context.Background())
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func send(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/email/send", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNew_DefaultProviders(t *testing.T) {
	a := newTestApp(t, testConfig())

	members := a.Dispatcher().Pool().Members()
	require.Len(t, members, 2)
	assert.Equal(t, "ProviderA", members[0].Name())
	assert.Equal(t, "ProviderB", members[1].Name())
	assert.ElementsMatch(t, []string{"providers", "queue", "runtime"}, a.Health().CheckerNames())
}

func TestSend_EndToEnd(t *testing.T) {
	a := newTestApp(t, testConfig(), WithProviders(okProvider("ProviderA"), okProvider("ProviderB")))

	rec := send(t, a.Handler(), `{"to":"recipient@example.com","subject":"Test Email","body":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result email.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "ProviderA", result.Provider)
	assert.Equal(t, email.StatusSent, result.Status)
}

func TestSend_FailoverEndToEnd(t *testing.T) {
	a := newTestApp(t, testConfig(), WithProviders(failingProvider("ProviderA"), okProvider("ProviderB")))

	rec := send(t, a.Handler(), `{"to":"recipient@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result email.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "ProviderB", result.Provider)
}

func TestSend_DuplicateReplaysResult(t *testing.T) {
	var calls int
	counting := provider.Func("ProviderA", func(context.Context, email.Message) (email.Result, error) {
		calls++
		return email.NewResult("ProviderA", time.Now()), nil
	})
	a := newTestApp(t, testConfig(), WithProviders(counting))

	body := `{"to":"recipient@example.com","subject":"same"}`
	first := send(t, a.Handler(), body)
	second := send(t, a.Handler(), body)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestSend_AllProvidersFail(t *testing.T) {
	a := newTestApp(t, testConfig(), WithProviders(failingProvider("ProviderA"), failingProvider("ProviderB")))

	rec := send(t, a.Handler(), `{"to":"recipient@example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "all providers failed")
}

func TestSend_RecipientRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Dispatch.RateLimit.MaxRequests = 1
	a := newTestApp(t, cfg, WithProviders(okProvider("ProviderA")))

	require.Equal(t, http.StatusOK, send(t, a.Handler(), `{"to":"r@example.com","subject":"1"}`).Code)

	rec := send(t, a.Handler(), `{"to":"r@example.com","subject":"2"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit")
}

func TestReadiness(t *testing.T) {
	a := newTestApp(t, testConfig(), WithProviders(okProvider("ProviderA")))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	a, err := New(context.Background(), cfg, WithProviders(okProvider("ProviderA")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Addr() + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, a.Dispatcher().Running())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, a.Dispatcher().Running())
	assert.NoError(t, a.Shutdown(context.Background()), "second Shutdown is a no-op")
}

func TestBuildProviders(t *testing.T) {
	t.Setenv("SMTP_PASSWORD", "hunter2")

	defs := []config.ProviderConfig{
		{Name: "sim", Type: config.ProviderSimulated, FailureRate: 0.5, LatencyMs: 10},
		{Name: "relay", Type: config.ProviderSMTP, SMTP: config.SMTPConfig{
			Host:     "smtp.example.com",
			From:     "noreply@example.com",
			Username: "user",
			Password: "secretref:env:SMTP_PASSWORD",
		}},
	}

	providers, err := buildProviders(context.Background(), defs, secret.DefaultResolver(), clockwork.NewFakeClock())
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.IsType(t, &provider.Simulated{}, providers[0])
	assert.IsType(t, &provider.SMTP{}, providers[1])
}

func TestBuildProviders_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  config.ProviderConfig
		want error
	}{
		{
			name: "unknown type",
			def:  config.ProviderConfig{Name: "x", Type: "carrier-pigeon"},
			want: config.ErrUnknownProviderType,
		},
		{
			name: "missing secret",
			def: config.ProviderConfig{Name: "relay", Type: config.ProviderSMTP, SMTP: config.SMTPConfig{
				Host:     "smtp.example.com",
				From:     "noreply@example.com",
				Password: "secretref:env:MAILDISPATCH_TEST_UNSET_SECRET",
			}},
			want: secret.ErrMissingEnv,
		},
		{
			name: "invalid failure rate",
			def:  config.ProviderConfig{Name: "sim", Type: config.ProviderSimulated, FailureRate: 2},
			want: provider.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildProviders(context.Background(), []config.ProviderConfig{tt.def}, secret.DefaultResolver(), clockwork.NewFakeClock())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.def.Name)
		})
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
