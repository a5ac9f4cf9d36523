// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmoldow/lazykit/lazyconf"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func newTestServer(t *testing.T, cfg Config) (*Server, http.Handler) {
	t.Helper()
	holder := lazyconf.NewHolder(lazyconf.Static(cfg), lazyconf.WithValidator(Config.Validate))
	srv, err := NewServer(zerolog.Nop(), holder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	return srv, srv.Routes(cfg)
}

func doJSON(t *testing.T, h http.Handler, method, target string, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_Healthz(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["databaseOpened"])
	assert.Equal(t, false, body["storeOpened"])
	assert.False(t, srv.db.Forced(), "healthz must not force the database")
}

func TestServer_GreetingDefaultLanguage(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/greeting", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello!", body["greeting"])
	assert.Equal(t, "en", body["language"])
}

func TestServer_GreetingNegotiatesLanguage(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/greeting", map[string]string{
		"Accept-Language": "de-AT, de;q=0.9, en;q=0.5",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hallo!", body["greeting"])
	assert.Equal(t, "de", body["language"])
}

func TestServer_GreetingConfigOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Greetings = map[string]string{"de": "Servus!"}
	_, h := newTestServer(t, cfg)

	rec, body := doJSON(t, h, http.MethodGet, "/v1/greeting", map[string]string{
		"Accept-Language": "de",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Servus!", body["greeting"])
}

func TestServer_WhoamiAnonymousSkipsDatabase(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/whoami", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", body["name"])
	assert.Equal(t, "guest", body["role"])
	assert.Equal(t, true, body["anonymous"])

	assert.False(t, srv.db.Forced(), "anonymous whoami must not open the database")
	assert.False(t, srv.store.Forced(), "anonymous whoami must not open the memo store")
}

func TestServer_WhoamiKnownKey(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
		"X-API-Key": "demo-key",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Demo User", body["name"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, false, body["anonymous"])

	assert.True(t, srv.db.Forced())
	assert.True(t, srv.store.Forced())
}

func TestServer_WhoamiUnknownKey(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
		"X-API-Key": "no-such-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unknown api key", body["error"])
}

func TestServer_WhoamiMemoizesLookup(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	for range 3 {
		rec, _ := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
			"X-API-Key": "demo-key",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	store, ok := srv.store.Peek()
	require.True(t, ok)
	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Sets, "only the first lookup should query")
	assert.Equal(t, int64(2), stats.Hits)
}

func TestServer_LightEndpointsLeaveBackendsClosed(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	for _, target := range []string{"/healthz", "/v1/greeting", "/v1/stats"} {
		rec, _ := doJSON(t, h, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
	}

	assert.False(t, srv.db.Forced())
	assert.False(t, srv.store.Forced())
}

func TestServer_VisitsIncrement(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/visits", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["visits"])

	rec, body = doJSON(t, h, http.MethodGet, "/v1/visits", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["visits"])
	assert.Equal(t, "You have visited 2 times.", body["message"])
}

func TestServer_VisitsLocalizedMessage(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	rec, body := doJSON(t, h, http.MethodGet, "/v1/visits", map[string]string{
		"Accept-Language": "de",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Du hast uns 1 Mal besucht.", body["message"])
	assert.Equal(t, "de", body["language"])
}

func TestServer_StatsReflectsForcing(t *testing.T) {
	_, h := newTestServer(t, testConfig(t))

	var before statsResponse
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))

	assert.True(t, before.ConfigLoaded, "constructor reads the config")
	assert.False(t, before.DatabaseOpened)
	assert.False(t, before.StoreOpened)
	assert.Nil(t, before.Memo)
	assert.Contains(t, before.Languages, "de")

	_, _ = doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{"X-API-Key": "demo-key"})

	var after statsResponse
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))

	assert.True(t, after.DatabaseOpened)
	assert.True(t, after.StoreOpened)
	require.NotNil(t, after.Memo)
	assert.Equal(t, int64(1), after.Memo.Sets)
}

func TestServer_MemoBackendOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memo.Backend = "off"
	_, h := newTestServer(t, cfg)

	for range 2 {
		rec, body := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
			"X-API-Key": "demo-key",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Demo User", body["name"])
	}
}

func TestServer_RedisBackendCachesLookups(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Memo.Backend = "redis"
	cfg.Memo.RedisAddr = mr.Addr()
	_, h := newTestServer(t, cfg)

	rec, body := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
		"X-API-Key": "demo-key",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Demo User", body["name"])

	assert.True(t, mr.Exists("visitor:demo-key"), "lookup result should be cached in redis")
}

func TestServer_BadgerBackendCachesLookups(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memo.Backend = "badger"
	cfg.Memo.BadgerPath = filepath.Join(t.TempDir(), "badger")
	srv, h := newTestServer(t, cfg)

	rec, _ := doJSON(t, h, http.MethodGet, "/v1/whoami", map[string]string{
		"X-API-Key": "demo-key",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	store, ok := srv.store.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(1), store.Stats().Sets)
}

func TestServer_ReloadAppliesNewGreetings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazykitd.yaml")
	write := func(content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write("sqlitePath: " + filepath.Join(t.TempDir(), "test.db") + "\n")

	holder := NewConfigHolder(path)
	srv, err := NewServer(zerolog.Nop(), holder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })

	cfg, err := holder.Get()
	require.NoError(t, err)
	h := srv.Routes(cfg)

	write("greetings:\n  de: Moin!\n")
	rec, _ := doJSON(t, h, http.MethodPost, "/-/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, h, http.MethodGet, "/v1/greeting", map[string]string{
		"Accept-Language": "de",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Moin!", body["greeting"])
}

func TestServer_ReloadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazykitd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: info\n"), 0o600))

	holder := NewConfigHolder(path)
	srv, err := NewServer(zerolog.Nop(), holder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })

	cfg, err := holder.Get()
	require.NoError(t, err)
	h := srv.Routes(cfg)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: chatty\n"), 0o600))
	rec, body := doJSON(t, h, http.MethodPost, "/-/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "invalid log level")

	// Previous config still serves.
	rec, _ = doJSON(t, h, http.MethodGet, "/v1/greeting", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RateLimitWired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits.RequestsPerMinute = 2
	_, h := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec, _ := doJSON(t, h, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServer_GlobalThrottleWired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits.GlobalRPS = 1
	cfg.Limits.GlobalBurst = 1
	_, h := newTestServer(t, cfg)

	rec, _ := doJSON(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServer_CloseIsIdempotent(t *testing.T) {
	srv, h := newTestServer(t, testConfig(t))

	rec, _ := doJSON(t, h, http.MethodGet, "/v1/visits", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, srv.Close(context.Background()))
	require.NoError(t, srv.Close(context.Background()))
}
