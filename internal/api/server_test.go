package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/docreg/internal/auth"
	"github.io/infrasutra/docreg/internal/config"
	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/session"
	"github.io/infrasutra/docreg/internal/sse"
	"github.io/infrasutra/docreg/internal/store"
	"github.io/infrasutra/docreg/internal/workbook"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	server   *Server
	srv      *httptest.Server
	store    *store.Store
	sessions *session.Manager
	clock    *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)}

	db, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))
	require.NoError(t, db.EnsureWorksheet(ctx, documents.SendersTab, documents.ReferenceHeader))
	require.NoError(t, db.EnsureWorksheet(ctx, documents.RecipientsTab, documents.ReferenceHeader))
	for _, typ := range documents.Types() {
		require.NoError(t, db.EnsureWorksheet(ctx, string(typ), documents.Header))
	}
	require.NoError(t, db.AppendRow(ctx, documents.SendersTab, []string{"Luis", "Gerencia"}))
	require.NoError(t, db.AppendRow(ctx, documents.RecipientsTab, []string{"Ana"}))

	sessions := session.NewManager(20 * time.Second)
	cookies, err := auth.NewCookies("test-secret", 24*time.Hour)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(auth.DefaultAccounts(), sessions, logger)
	hub := sse.NewHub()
	docs := documents.NewService(workbook.Static(db), logger,
		documents.WithClock(clock.Now),
		documents.WithListener(hub),
	)

	server, err := NewServer(config.Config{}, sessions, authenticator, cookies, docs, hub, logger, WithClock(clock.Now))
	require.NoError(t, err)
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	return &testEnv{server: server, srv: srv, store: db, sessions: sessions, clock: clock}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) (int, string) {
	t.Helper()
	resp, err := c.Get(e.srv.URL + path)
	require.NoError(t, err)
	return readResponse(t, resp)
}

func (e *testEnv) post(t *testing.T, c *http.Client, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := c.PostForm(e.srv.URL+path, form)
	require.NoError(t, err)
	return readResponse(t, resp)
}

func (e *testEnv) login(t *testing.T, c *http.Client, user, password string) (int, string) {
	t.Helper()
	return e.post(t, c, "/login", url.Values{"usuario": {user}, "password": {password}})
}

func readResponse(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func submission(tipo, subject string) url.Values {
	return url.Values{
		"tipo":         {tipo},
		"remitente":    {"Luis_Gerencia"},
		"destinatario": {"Ana_"},
		"asunto":       {subject},
	}
}

func TestIndex_ShowsLoginForAnonymous(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.get(t, env.client(t), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `action="/login"`)
	assert.NotContains(t, body, "Ya hay un usuario conectado")
}

func TestLogin_AdminSeesMainView(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.get(t, c, "/")

	status, body := env.login(t, c, "administrador", "admin123")

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Registro de OFICIOS")
	assert.Contains(t, body, "Acceso: Administrador")
	assert.Contains(t, body, "Luis_Gerencia")
	assert.Contains(t, body, "Ana_")
	assert.Contains(t, body, "<strong>Nro:</strong> 001")
	assert.True(t, env.sessions.Locked())
}

func TestLogin_UserRoleBadge(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.login(t, c, "usuario_01", "user123")

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Acceso: Usuario")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.login(t, c, "administrador", "wrong")

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Usuario o contraseña incorrectos")
	assert.False(t, env.sessions.Locked())

	status, body = env.get(t, c, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `action="/login"`)
}

func TestLogin_PaddedUsernameIsRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.login(t, c, "  administrador \t", "admin123")

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Usuario o contraseña incorrectos")
	assert.False(t, env.sessions.Locked())
}

func TestLogin_LockBlocksSecondBrowser(t *testing.T) {
	env := newTestEnv(t)
	first := env.client(t)
	second := env.client(t)

	status, _ := env.login(t, first, "administrador", "admin123")
	require.Equal(t, http.StatusOK, status)

	status, body := env.get(t, second, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Ya hay un usuario conectado. Intenta más tarde.")
	assert.NotContains(t, body, `action="/login"`)

	status, _ = env.login(t, second, "usuario_01", "user123")
	assert.Equal(t, http.StatusLocked, status)
}

func TestLogout_ReleasesLock(t *testing.T) {
	env := newTestEnv(t)
	first := env.client(t)
	second := env.client(t)

	env.login(t, first, "administrador", "admin123")
	status, body := env.post(t, first, "/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `action="/login"`)
	assert.False(t, env.sessions.Locked())

	status, body = env.login(t, second, "usuario_01", "user123")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Acceso: Usuario")
}

func TestSubmit_AppendsToSelectedTabOnly(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	status, body := env.post(t, c, "/documents", submission("Oficios", "Solicitud de materiales"))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Documento registrado correctamente")
	assert.Contains(t, body, "Ingresar otro documento")
	assert.Contains(t, body, "<dd>001</dd>")
	assert.Contains(t, body, "<dd>2025-05-02 10:00</dd>")

	status, body = env.post(t, c, "/documents", submission("Oficios", "Segundo"))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<dd>002</dd>")

	ctx := context.Background()
	oficios, err := env.store.Values(ctx, string(documents.Oficios))
	require.NoError(t, err)
	require.Len(t, oficios, 3)
	assert.Equal(t, []string{"001", "2025-05-02 10:00", "Luis_Gerencia", "Ana_", "Solicitud de materiales"}, oficios[1])

	hojas, err := env.store.Values(ctx, string(documents.HojasInformativas))
	require.NoError(t, err)
	assert.Len(t, hojas, 1)

	status, body = env.get(t, c, "/?tipo=Oficios")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<strong>Nro:</strong> 003")
	assert.Contains(t, body, "Solicitud de materiales")
}

func TestSubmit_RejectsUnknownSelection(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	form := submission("HojasInformativas", "x")
	form.Set("remitente", "Nadie_")
	status, body := env.post(t, c, "/documents", form)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Registro de HOJASINFORMATIVAS")
	values, err := env.store.Values(context.Background(), string(documents.HojasInformativas))
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestSubmit_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.post(t, env.client(t), "/documents", submission("Oficios", "x"))

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, `action="/login"`)
}

func TestInactivity_RestartsAtLoginWithWarning(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	env.clock.Advance(20 * time.Second)
	status, body := env.get(t, c, "/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Registro de OFICIOS")

	env.clock.Advance(21 * time.Second)
	status, body = env.get(t, c, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Sesión cerrada por inactividad")
	assert.Contains(t, body, `action="/login"`)
	assert.False(t, env.sessions.Locked())

	_, body = env.get(t, c, "/")
	assert.NotContains(t, body, "Sesión cerrada por inactividad")
}

func TestInactivity_SubmitAfterTimeoutDoesNotAppend(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	env.clock.Advance(time.Minute)
	_, body := env.post(t, c, "/documents", submission("Oficios", "tarde"))
	assert.Contains(t, body, "Sesión cerrada por inactividad")

	values, err := env.store.Values(context.Background(), string(documents.Oficios))
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestRecords_JSON(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, _ := env.get(t, c, "/api/documents?tipo=Oficios")
	assert.Equal(t, http.StatusUnauthorized, status)

	env.login(t, c, "usuario_01", "user123")
	for _, subject := range []string{"uno", "dos", "tres"} {
		status, _ := env.post(t, c, "/documents", submission("Oficios", subject))
		require.Equal(t, http.StatusOK, status)
	}

	status, body := env.get(t, c, "/api/documents?tipo=Oficios&limit=2&sort=newest")
	require.Equal(t, http.StatusOK, status)

	var payload struct {
		Type    string          `json:"type"`
		Total   int             `json:"total"`
		HasMore bool            `json:"hasMore"`
		Rows    []documents.Row `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "Oficios", payload.Type)
	assert.Equal(t, 3, payload.Total)
	assert.True(t, payload.HasMore)
	require.Len(t, payload.Rows, 2)
	assert.Equal(t, "003", payload.Rows[0].Number)
	assert.Equal(t, "tres", payload.Rows[0].Subject)
	assert.Equal(t, "002", payload.Rows[1].Number)

	status, _ = env.get(t, c, "/api/documents?tipo=Memorandos")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.get(t, c, "/api/documents?tipo=Oficios&page=4611686018427387904&limit=4")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Empty(t, payload.Rows)
	assert.False(t, payload.HasMore)
	assert.Equal(t, 3, payload.Total)

	status, body = env.get(t, c, "/api/documents?tipo=Oficios")
	require.Equal(t, http.StatusOK, status)
	var defaults struct {
		Limit int             `json:"limit"`
		Sort  string          `json:"sort"`
		Rows  []documents.Row `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &defaults))
	assert.Equal(t, recordsPageSize, defaults.Limit)
	assert.Equal(t, "newest", defaults.Sort)
	require.Len(t, defaults.Rows, 3)
	assert.Equal(t, "003", defaults.Rows[0].Number)
}

func TestMe_ReportsSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	status, body := env.get(t, c, "/api/me")
	require.Equal(t, http.StatusOK, status)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, true, payload["authenticated"])
	assert.Equal(t, "administrador", payload["user"])
	assert.Equal(t, "admin", payload["role"])
}

func TestStream_DeliversAppendedRows(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events?tipo=Oficios", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "event: ready")

	status, _ := env.post(t, c, "/documents", submission("Oficios", "en vivo"))
	require.Equal(t, http.StatusOK, status)

	var received strings.Builder
	for !strings.Contains(received.String(), "en vivo") {
		n, err := resp.Body.Read(buf)
		require.NoError(t, err)
		received.Write(buf[:n])
	}
	assert.Contains(t, received.String(), "event: row")
	assert.Contains(t, received.String(), `"number":"001"`)
}

func TestStream_EndsOnCloseStreams(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.login(t, c, "administrador", "admin123")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/events?tipo=Oficios", nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.server.CloseStreams()
	env.server.CloseStreams()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "event: ready")
	assert.NoError(t, ctx.Err())
}

func TestProbesAndStatic(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	status, body := env.get(t, c, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, body = env.get(t, c, "/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body)

	status, _ = env.get(t, c, "/static/style.css")
	assert.Equal(t, http.StatusOK, status)
}

func TestStoreFailure_RendersErrorPage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(20 * time.Second)
	cookies, err := auth.NewCookies("test-secret", time.Hour)
	require.NoError(t, err)
	failing := workbook.OpenerFunc(func(context.Context) (workbook.Workbook, error) {
		return nil, assert.AnError
	})
	docs := documents.NewService(failing, logger)
	server, err := NewServer(config.Config{}, sessions, auth.NewAuthenticator(auth.DefaultAccounts(), sessions, logger),
		cookies, docs, sse.NewHub(), logger)
	require.NoError(t, err)
	srv := httptest.NewServer(server)
	defer srv.Close()

	env := &testEnv{srv: srv, sessions: sessions}
	c := env.client(t)
	status, body := env.login(t, c, "administrador", "admin123")

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Error 500")
}
