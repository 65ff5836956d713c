package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpapi "github.com/tallyworks/tally/internal/api/http"
	"github.com/tallyworks/tally/internal/api/service"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/internal/api/store/drivers/sqlite"
	"github.com/tallyworks/tally/pkg/jwtx"
)

/*
 * Common helpers for API end-to-end tests. The full router runs in-process
 * against a temporary SQLite database; tests drive it over real HTTP via
 * httptest.Server.
 */

const (
	e2eIssuer      = "tally-e2e"
	e2eFrontendURL = "https://app.test"
)

// recordedMail is one message captured by the recording mailer.
type recordedMail struct {
	To      string
	Subject string
	Body    string
}

// recordingMailer captures outbound mail so tests can fish out invitation
// tokens and temporary passwords.
type recordingMailer struct {
	mu       sync.Mutex
	messages []recordedMail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, recordedMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last(t *testing.T) recordedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.messages, "expected at least one delivered mail")
	return m.messages[len(m.messages)-1]
}

type testFixture struct {
	Store  store.Store
	Mailer *recordingMailer
}

// newTestServer wires the real router against a fresh database and starts an
// HTTP server for it.
func newTestServer(t *testing.T) (*httptest.Server, *testFixture) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "tally_e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	tokens, err := jwtx.NewHS256("e2e-secret", e2eIssuer, time.Hour)
	require.NoError(t, err)
	sessions := &service.SessionIssuer{Tokens: tokens}
	mailer := &recordingMailer{}

	router := httpapi.NewRouter(tokens, "e2e", st,
		slog.New(slog.DiscardHandler), []string{e2eFrontendURL})
	router.FrontendBaseURL = e2eFrontendURL
	router.AuthService = &service.AuthService{Store: st, Sessions: sessions}
	router.OAuthService = service.NewOAuthService(st, sessions, "http://localhost/v1",
		service.OAuthProviderConfig{}, service.OAuthProviderConfig{})
	router.MFAService = &service.MFAService{Store: st, Issuer: e2eIssuer}
	router.TeamService = &service.TeamService{
		Store:           st,
		Sessions:        sessions,
		Mailer:          mailer,
		FrontendBaseURL: e2eFrontendURL,
	}
	router.BusinessService = &service.BusinessService{Store: st}
	router.RegistrationService = &service.RegistrationService{
		Store:           st,
		Mailer:          mailer,
		FrontendBaseURL: e2eFrontendURL,
	}
	router.InvoiceService = &service.InvoiceService{Store: st}
	router.ClientService = &service.ClientService{Store: st}
	router.ExpenseService = &service.ExpenseService{Store: st}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, &testFixture{Store: st, Mailer: mailer}
}

// doJSON performs one request and decodes the response body into a generic
// map (nil for empty bodies).
func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any, header map[string]string) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, server.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return resp.StatusCode, nil
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	return resp.StatusCode, decoded
}

// doJSONList is doJSON for endpoints answering a JSON array.
func doJSONList(t *testing.T, server *httptest.Server, method, path, token string, header map[string]string) (int, []map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, decoded
}

// registerAccount self-registers an account and returns its session token.
func registerAccount(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	status, body := doJSON(t, server, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":    email,
		"name":     "E2E User",
		"password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, status, "register should succeed: %v", body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// createBusiness opens a business for the given session and returns its id.
func createBusiness(t *testing.T, server *httptest.Server, token, name string) string {
	t.Helper()
	status, body := doJSON(t, server, http.MethodPost, "/v1/businesses", token, map[string]any{
		"name":     name,
		"currency": "AUD",
	}, nil)
	require.Equal(t, http.StatusCreated, status, "business create should succeed: %v", body)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// extractInviteToken pulls the raw invitation token out of a delivered mail.
func extractInviteToken(t *testing.T, body string) string {
	t.Helper()
	const marker = "token="
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0, "invite mail should carry an accept link")
	token := body[idx+len(marker):]
	if end := strings.IndexAny(token, " \n"); end >= 0 {
		token = token[:end]
	}
	require.NotEmpty(t, token)
	return token
}

// extractTempPassword pulls the temporary password out of an approval mail;
// it is the only indented line of the message.
func extractTempPassword(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "    ") {
			return strings.TrimSpace(line)
		}
	}
	t.Fatal("approval mail should carry a temporary password")
	return ""
}
