package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/tasklet/internal/credential"
	"github.com/florianilch/tasklet/internal/gateway"
	"github.com/florianilch/tasklet/internal/metrics"
	"github.com/florianilch/tasklet/internal/testutil"
)

type passwordSecret string

func (p passwordSecret) Read(context.Context) (string, error) { return string(p), nil }
func (p passwordSecret) Write(context.Context, string) error   { return errors.New("read-only") }

func newGateway(t *testing.T, api *testutil.FakeAPI, password string, opts ...gateway.Option) (*gateway.Gateway, *credential.Provider) {
	t.Helper()

	provider, err := credential.NewProvider(api.URL, testutil.Username, passwordSecret(password))
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	gw, err := gateway.New(provider.TokenSource(context.Background()), api.URL, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw, provider
}

func TestGatewayForwardsWithCredential(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	api.AddTask("Buy milk", "", false)
	gw, provider := newGateway(t, api, testutil.Password)

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks/", nil)
		req.Header.Set("Authorization", "Bearer caller-supplied")
		req.Header.Set("Cookie", "session=abc")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()

		gw.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		var got []testutil.Record
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if len(got) != 1 || got[0].Title != "Buy milk" {
			t.Errorf("tasks = %+v", got)
		}
	}

	if n := provider.Acquisitions(); n != 1 {
		t.Errorf("Acquisitions() = %d, want 1", n)
	}

	upstream, ok := api.LastRequest(http.MethodGet, "/api/tasks/")
	if !ok {
		t.Fatal("no request reached the task service")
	}
	if got := upstream.Header.Get("Authorization"); got != "Bearer "+testutil.AccessToken {
		t.Errorf("upstream Authorization = %q", got)
	}
	if got := upstream.Header.Get("Cookie"); got != "" {
		t.Errorf("upstream Cookie = %q, want it dropped", got)
	}
	if got := upstream.Header.Get("Accept"); got != "application/json" {
		t.Errorf("upstream Accept = %q", got)
	}
}

func TestGatewayForwardsWrites(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	existing := api.AddTask("Water plants", "", false)
	gw, _ := newGateway(t, api, testutil.Password)

	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/1/", strings.NewReader(`{"completed":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	stored := api.Tasks()
	if len(stored) != 1 || stored[0].ID != existing.ID || !stored[0].Completed {
		t.Errorf("stored = %+v", stored)
	}

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/tasks/1/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if len(api.Tasks()) != 0 {
		t.Error("task was not deleted")
	}
}

func TestGatewayAuthenticationFailure(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	gw, _ := newGateway(t, api, "wrong")

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body gateway.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error != "upstream authentication failed" {
		t.Errorf("error = %q", body.Error)
	}
	if _, ok := api.LastRequest(http.MethodGet, "/api/tasks/"); ok {
		t.Error("request reached the task service without a credential")
	}
}

func TestGatewayUpstreamUnavailable(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	gw, _ := newGateway(t, api, testutil.Password,
		gateway.WithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})),
	)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream unavailable") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestGatewayHealthAndMetrics(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	gw, _ := newGateway(t, api, testutil.Password, gateway.WithMetrics(metrics.New()))

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `tasklet_gateway_requests_total{code="200",method="get"} 1`) {
		t.Errorf("metrics lack the gateway request:\n%s", rec.Body)
	}
}

func TestGatewayUnknownPath(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	gw, _ := newGateway(t, api, testutil.Password)

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if len(api.Requests()) != 0 {
		t.Error("unknown path was forwarded")
	}
}

func TestGatewayStartShutdown(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	gw, _ := newGateway(t, api, testutil.Password)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := gw.Serve(context.Background(), listener)

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err, ok := <-errCh; ok && err != nil {
		t.Errorf("runtime error = %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	api := testutil.NewFakeAPI(t)
	provider, err := credential.NewProvider(api.URL, testutil.Username, passwordSecret(testutil.Password))
	if err != nil {
		t.Fatal(err)
	}
	ts := provider.TokenSource(context.Background())

	if _, err := gateway.New(nil, api.URL); err == nil {
		t.Error("New(nil source) error = nil")
	}
	if _, err := gateway.New(ts, "not a url"); err == nil {
		t.Error("New(bad URL) error = nil")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
