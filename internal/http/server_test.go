package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/projectd/internal/kv"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

func newStore(t *testing.T) *project.Store {
	t.Helper()
	engine := kv.NewMemory()
	t.Cleanup(func() { _ = engine.Close() })
	store, err := project.NewStore(engine)
	require.NoError(t, err)
	return store
}

func setupTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := &Config{Port: 8000}
	server, err := NewServer(newStore(t), zap.NewNop(), cfg, opts...)
	require.NoError(t, err)
	return server
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func create(t *testing.T, server *Server, name, owner string) string {
	t.Helper()
	rec := do(t, server, http.MethodPost, "/api/v1/projects", CreateRequest{
		FileRef:     "https://files.example.com/" + name + ".zip",
		DisplayName: name,
		OwnerName:   "Owner " + owner,
		OwnerID:     owner,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateResponse](t, rec).ProjectID
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	assert.Equal(t, code, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "error", resp.Status)
	if message != "" {
		assert.Equal(t, message, resp.Message)
	}
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090}

		server, err := NewServer(newStore(t), zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.Nil(t, server.limiter)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(newStore(t), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, 8000, server.config.Port)
		assert.NotNil(t, server.limiter)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newStore(t), nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "store cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleCreate(t *testing.T) {
	t.Run("canonical fields", func(t *testing.T) {
		server := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/v1/projects", CreateRequest{
			FileRef:      "https://files.example.com/a.zip",
			DisplayName:  "Alpha",
			OwnerName:    "alice",
			OwnerID:      "u-1",
			Verified:     true,
			ContactEmail: "alice@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decode[CreateResponse](t, rec)
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, "0", resp.ProjectID)

		p, err := server.store.Get(context.Background(), "0")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", p.ContactEmail)
		assert.True(t, p.Verified)
	})

	t.Run("legacy field names on /save", func(t *testing.T) {
		server := setupTestServer(t)

		rec := do(t, server, http.MethodPost, "/save", map[string]any{
			"url":         "https://files.example.com/b.zip",
			"projectName": "Beta",
			"username":    "bob",
			"uid":         "u-2",
			"verified":    false,
			"email":       "bob@example.com",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		p, err := server.store.Get(context.Background(), decode[CreateResponse](t, rec).ProjectID)
		require.NoError(t, err)
		assert.Equal(t, "https://files.example.com/b.zip", p.FileRef)
		assert.Equal(t, "Beta", p.DisplayName)
		assert.Equal(t, "bob", p.OwnerName)
		assert.Equal(t, "u-2", p.OwnerID)
		assert.Equal(t, "bob@example.com", p.ContactEmail)
	})

	t.Run("missing field", func(t *testing.T) {
		server := setupTestServer(t)
		rec := do(t, server, http.MethodPost, "/api/v1/projects", CreateRequest{DisplayName: "x"})
		assertError(t, rec, http.StatusBadRequest, "")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := setupTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewBufferString("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assertError(t, rec, http.StatusBadRequest, msgInvalidBody)
	})

	t.Run("banned owner", func(t *testing.T) {
		server := setupTestServer(t)
		require.Equal(t, http.StatusOK, do(t, server, http.MethodPut, "/api/v1/bans/troll", nil).Code)

		rec := do(t, server, http.MethodPost, "/api/v1/projects", CreateRequest{
			FileRef: "f", DisplayName: "x", OwnerName: "t", OwnerID: "troll",
		})
		assertError(t, rec, http.StatusForbidden, msgBanned)

		require.Equal(t, http.StatusOK, do(t, server, http.MethodDelete, "/api/v1/bans/troll", nil).Code)
		create(t, server, "x", "troll")
	})
}

func TestHandleList(t *testing.T) {
	server := setupTestServer(t)
	for i := 0; i < 25; i++ {
		create(t, server, fmt.Sprintf("p%d", i), "u-1")
	}

	rec := do(t, server, http.MethodGet, "/api/v1/projects?offset=0&limit=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[ListResponse](t, rec)
	assert.Len(t, first.Projects, 20)
	assert.Equal(t, 25, first.Total)
	assert.Equal(t, "24", first.Projects[0].ID)
	assert.Equal(t, "5", first.NextStartAfter)

	rec = do(t, server, http.MethodGet, "/api/v1/projects?offset=20&limit=20", nil)
	second := decode[ListResponse](t, rec)
	require.Len(t, second.Projects, 5)
	assert.Equal(t, "4", second.Projects[0].ID)
	assert.Equal(t, "0", second.Projects[4].ID)

	rec = do(t, server, http.MethodGet, "/api/v1/projects?startAfter=5&limit=2", nil)
	cursor := decode[ListResponse](t, rec)
	require.Len(t, cursor.Projects, 2)
	assert.Equal(t, "4", cursor.Projects[0].ID)

	assertError(t, do(t, server, http.MethodGet, "/api/v1/projects?limit=abc", nil), http.StatusBadRequest, "")
	assertError(t, do(t, server, http.MethodGet, "/api/v1/projects?offset=-1", nil), http.StatusBadRequest, "")
}

func TestHandleLegacyList(t *testing.T) {
	server := setupTestServer(t)
	for i := 0; i < 22; i++ {
		create(t, server, fmt.Sprintf("p%d", i), "u-1")
	}

	rec := do(t, server, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProjectsResponse](t, rec)
	assert.Len(t, resp.Projects, 20)

	rec = do(t, server, http.MethodGet, "/projects?startAfter=2", nil)
	resp = decode[ProjectsResponse](t, rec)
	require.Len(t, resp.Projects, 2)
	assert.Equal(t, "1", resp.Projects[0].ID)
}

func TestHandleInfo(t *testing.T) {
	server := setupTestServer(t)
	id := create(t, server, "Alpha", "u-1")

	rec := do(t, server, http.MethodGet, "/api/v1/projects/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "fileRef")
	assert.NotContains(t, rec.Body.String(), "contactEmail")
	resp := decode[InfoResponse](t, rec)
	assert.Equal(t, "Alpha", resp.Project.DisplayName)
	assert.Equal(t, uint64(0), resp.Project.DownloadCount)

	assertError(t, do(t, server, http.MethodGet, "/api/v1/projects/404", nil), http.StatusNotFound, msgNotFound)
}

func TestHandleRenameAndVerify(t *testing.T) {
	server := setupTestServer(t)
	id := create(t, server, "Alpha", "u-1")

	rec := do(t, server, http.MethodPatch, "/api/v1/projects/"+id+"/name", RenameRequest{NewName: "Omega"})
	require.Equal(t, http.StatusOK, rec.Code)

	assertError(t, do(t, server, http.MethodPatch, "/api/v1/projects/"+id+"/name", RenameRequest{}), http.StatusBadRequest, "")
	assertError(t, do(t, server, http.MethodPatch, "/api/v1/projects/77/name", RenameRequest{NewName: "x"}), http.StatusNotFound, msgNotFound)

	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/projects/"+id+"/verify", nil).Code)
	assertError(t, do(t, server, http.MethodPost, "/api/v1/projects/77/verify", nil), http.StatusNotFound, msgNotFound)

	p, err := server.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Omega", p.DisplayName)
	assert.True(t, p.Verified)
}

func TestHandleIncrement(t *testing.T) {
	server := setupTestServer(t)
	id := create(t, server, "Alpha", "u-1")

	rec := do(t, server, http.MethodPost, "/api/v1/projects/"+id+"/downloads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", decode[DownloadResponse](t, rec).DownloadCount)

	rec = do(t, server, http.MethodGet, "/increase?projectId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","download":"2"}`, rec.Body.String())

	assertError(t, do(t, server, http.MethodGet, "/increase", nil), http.StatusBadRequest, msgMissingID)
	assertError(t, do(t, server, http.MethodGet, "/increase?projectId=99", nil), http.StatusNotFound, msgNotFound)

	_, err := server.store.Get(context.Background(), "99")
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestHandleDelete(t *testing.T) {
	server := setupTestServer(t)
	id := create(t, server, "Alpha", "owner")

	assertError(t, do(t, server, http.MethodDelete, "/api/v1/projects/"+id+"?callerId=intruder", nil), http.StatusForbidden, msgUnauthorized)
	assertError(t, do(t, server, http.MethodDelete, "/api/v1/projects/"+id, nil), http.StatusForbidden, msgUnauthorized)

	rec := do(t, server, http.MethodDelete, "/api/v1/projects/"+id, DeleteRequest{CallerID: "owner"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assertError(t, do(t, server, http.MethodDelete, "/api/v1/projects/"+id+"?callerId=owner", nil), http.StatusNotFound, msgNotFound)
}

func TestHandleLegacyDelete(t *testing.T) {
	server := setupTestServer(t)
	id := create(t, server, "Alpha", "owner")

	assertError(t, do(t, server, http.MethodDelete, "/delete", LegacyDeleteRequest{ProjectID: id, UID: "intruder"}), http.StatusForbidden, "Unauthorized.")

	rec := do(t, server, http.MethodDelete, "/delete", LegacyDeleteRequest{ProjectID: id, UID: "owner"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Project deleted."}`, rec.Body.String())

	assertError(t, do(t, server, http.MethodDelete, "/delete", LegacyDeleteRequest{ProjectID: id, UID: "owner"}), http.StatusNotFound, "Project not found.")
	assertError(t, do(t, server, http.MethodDelete, "/delete", LegacyDeleteRequest{UID: "owner"}), http.StatusBadRequest, msgMissingID)
}

func TestHandleListByOwner(t *testing.T) {
	server := setupTestServer(t)
	create(t, server, "a", "alice")
	create(t, server, "b", "bob")
	create(t, server, "c", "alice")

	rec := do(t, server, http.MethodGet, "/api/v1/owners/alice/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProjectsResponse](t, rec)
	require.Len(t, resp.Projects, 2)
	assert.Equal(t, "2", resp.Projects[0].ID)

	assertError(t, do(t, server, http.MethodGet, "/api/v1/owners/carol/projects", nil), http.StatusNotFound, msgOwnerNotFound)
}

func TestHandleSearch(t *testing.T) {
	server := setupTestServer(t)
	create(t, server, "abcdef", "u-1")
	create(t, server, "xyz", "u-2")

	rec := do(t, server, http.MethodGet, "/api/v1/search?q=ABC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProjectsResponse](t, rec)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "abcdef", resp.Projects[0].DisplayName)

	assertError(t, do(t, server, http.MethodGet, "/api/v1/search", nil), http.StatusBadRequest, "")
}

func TestHandleLeaderboard(t *testing.T) {
	server := setupTestServer(t)
	create(t, server, "A", "u-1")
	b := create(t, server, "B", "u-1")
	create(t, server, "C", "u-1")
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/v1/projects/"+b+"/downloads", nil).Code)
	}

	rec := do(t, server, http.MethodGet, "/api/v1/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProjectsResponse](t, rec)
	require.Len(t, resp.Projects, 3)
	assert.Equal(t, b, resp.Projects[0].ID)
	assert.Equal(t, uint64(2), resp.Projects[0].DownloadCount)
	assert.Contains(t, rec.Body.String(), `"downloadCount":"2"`)
}

func TestHandleBans(t *testing.T) {
	server := setupTestServer(t)

	require.Equal(t, http.StatusOK, do(t, server, http.MethodPut, "/api/v1/bans/u-1", nil).Code)
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPut, "/api/v1/bans/u-1", nil).Code)

	rec := do(t, server, http.MethodGet, "/api/v1/bans", nil)
	assert.Equal(t, []string{"u-1"}, decode[BansResponse](t, rec).Users)

	require.Equal(t, http.StatusOK, do(t, server, http.MethodDelete, "/api/v1/bans/u-1", nil).Code)
	rec = do(t, server, http.MethodGet, "/api/v1/bans", nil)
	assert.Empty(t, decode[BansResponse](t, rec).Users)
}

func TestHandlePurge(t *testing.T) {
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/admin/purge"},
		{http.MethodGet, "/clean"},
	} {
		t.Run(route.path, func(t *testing.T) {
			server := setupTestServer(t)
			create(t, server, "a", "u-1")
			create(t, server, "b", "u-1")

			rec := do(t, server, route.method, route.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, 2, decode[PurgeResponse](t, rec).Deleted)

			assert.Equal(t, "0", create(t, server, "c", "u-1"))
		})
	}
}

func TestHandleStatus(t *testing.T) {
	server := setupTestServer(t, WithVersion("1.2.3"))
	create(t, server, "a", "u-1")
	create(t, server, "b", "u-1")
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPut, "/api/v1/bans/troll", nil).Code)

	rec := do(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StatusResponse](t, rec)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusCounts{Projects: 2, BannedUsers: 1, NextProjectID: 2}, resp.Counts)
}

func TestHandleMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "projectd_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	server := setupTestServer(t, WithGatherer(registry))
	rec := do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "projectd_test_total 1")
}

func TestUnknownRoute(t *testing.T) {
	server := setupTestServer(t)
	assertError(t, do(t, server, http.MethodGet, "/nope", nil), http.StatusNotFound, msgRouteNotFound)
}

func TestRateLimit(t *testing.T) {
	cfg := &Config{RateLimit: RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}}
	server, err := NewServer(newStore(t), zap.NewNop(), cfg)
	require.NoError(t, err)

	body := CreateRequest{FileRef: "f", DisplayName: "x", OwnerName: "o", OwnerID: "u"}
	send := func(ip string) int {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewReader(data))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1"))
	assert.Equal(t, http.StatusCreated, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusCreated, send("10.0.0.2"), "limits are per client")

	// Reads are never throttled.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, server, http.MethodGet, "/api/v1/projects", nil).Code)
	}
}

func TestClientLimiterCleanup(t *testing.T) {
	l := newClientLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	first := l.get("10.0.0.1")
	assert.Same(t, first, l.get("10.0.0.1"))

	now = now.Add(2 * limiterTTL)
	assert.NotSame(t, first, l.get("10.0.0.1"))
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	server, err := NewServer(newStore(t), zap.New(core), &Config{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/5", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "req-123", fields["request.id"])
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestCallerIDLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	engine := kv.NewMemory()
	t.Cleanup(func() { _ = engine.Close() })
	store, err := project.NewStore(engine, project.WithLogger(logger))
	require.NoError(t, err)
	server, err := NewServer(store, logger, &Config{})
	require.NoError(t, err)

	send := func(method, path, requestID string, body any) *httptest.ResponseRecorder {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXRequestID, requestID)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/api/v1/projects", "req-create",
		CreateRequest{FileRef: "f", DisplayName: "Alpha", OwnerName: "Ada", OwnerID: "u-7"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = send(http.MethodDelete, "/api/v1/projects/0", "req-delete", DeleteRequest{CallerID: "u-7"})
	require.Equal(t, http.StatusOK, rec.Code)

	for msg, requestID := range map[string]string{
		"project created": "req-create",
		"project deleted": "req-delete",
	} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		fields := entries[0].ContextMap()
		assert.Equal(t, requestID, fields["request.id"], msg)
		assert.Equal(t, "u-7", fields["caller.id"], msg)
	}

	access := logs.FilterMessage("http request").All()
	require.Len(t, access, 2)
	for _, entry := range access {
		assert.Equal(t, "u-7", entry.ContextMap()["caller.id"])
	}
}

func TestRenameEmptyNameMessage(t *testing.T) {
	server := setupTestServer(t)
	rec := do(t, server, http.MethodPost, "/api/v1/projects",
		CreateRequest{FileRef: "f", DisplayName: "Alpha", OwnerName: "Ada", OwnerID: "u-7"})
	require.Equal(t, http.StatusCreated, rec.Code)

	assertError(t, do(t, server, http.MethodPatch, "/api/v1/projects/0/name", RenameRequest{NewName: ""}),
		http.StatusBadRequest, "newName is required")
}

func TestServer_StartAndShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	server, err := NewServer(newStore(t), zap.NewNop(), &Config{Host: "127.0.0.1", Port: port, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
