package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/services"
)

const testSecret = "handler-test-secret"

type testApp struct {
	cfg     *config.Config
	store   *sqlite.SQLiteRepository
	logs    *test.Hook
	router  http.Handler
	admin   string
	links   *services.LinkService
	tracker *services.TrackingService
}

func newTestApp(t *testing.T, tweak ...func(*config.Config)) *testApp {
	t.Helper()
	store, err := sqlite.NewSQLiteRepository(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		AppEnv:         "test",
		BaseURL:        "http://trk.test",
		FrontendURL:    "http://trk.test/dashboard",
		JWTSecret:      testSecret,
		AdminEmails:    []string{"admin@example.com"},
		AllowedOrigins: []string{"*"},
	}
	for _, fn := range tweak {
		fn(cfg)
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := []services.Option{services.WithLogger(logger), services.WithRetry(3, 0)}
	recorder := services.NewRecorder(store, store, opts...)
	links := services.NewLinkService(store, opts...)
	tracker := services.NewTrackingService(store, store, recorder, opts...)
	stats := services.NewStatsService(store, store, store, opts...)

	return &testApp{
		cfg:   cfg,
		store: store,
		logs:  hook,
		router: NewRouter(cfg, Services{
			Links:    links,
			Tracking: tracker,
			Stats:    stats,
			Actors:   store,
		}, logger),
		admin:   generateAdminToken(t, testSecret),
		links:   links,
		tracker: tracker,
	}
}

func generateAdminToken(t *testing.T, secret string) string {
	return generateTestToken(t, secret, RoleAdmin, time.Hour)
}

// do sends an admin-authenticated request through the full router.
func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.admin)
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// visit follows a tracking link as an anonymous browser would.
func (a *testApp) visit(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
