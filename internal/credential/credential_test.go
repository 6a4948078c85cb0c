package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// newTokenServer fakes the provider's token endpoint
func newTokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			if r.Form.Get("refresh_token") != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`))
		case "authorization_code":
			if r.Form.Get("code") != "code-1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func writeTokenFile(t *testing.T, dir string, body map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, "token.json")
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadOrRefresh_ValidTokenIsReturnedAsIs(t *testing.T) {
	path := writeTokenFile(t, t.TempDir(), map[string]any{
		"token":         "access-1",
		"refresh_token": "refresh-1",
		"expiry":        time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cred, err := LoadOrRefresh(context.Background(), NewFileStore(path))

	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.Token.AccessToken)
	assert.Equal(t, DefaultScopes, cred.Scopes)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadOrRefresh_ExpiredWithRefreshToken(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	path := writeTokenFile(t, t.TempDir(), map[string]any{
		"token":         "access-1",
		"refresh_token": "refresh-1",
		"token_uri":     server.URL,
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"scopes":        []string{"https://www.googleapis.com/auth/gmail.send"},
		"expiry":        "2020-01-01T00:00:00.000000Z",
	})
	store := NewFileStore(path)

	cred, err := LoadOrRefresh(context.Background(), store)

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, cred.Valid())
	assert.Equal(t, "access-2", cred.Token.AccessToken)
	assert.Equal(t, "refresh-1", cred.Token.RefreshToken)

	// the file now holds the serialized refreshed credential
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := cred.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(data))

	reloaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, reloaded.Valid())
	assert.Equal(t, "client-id", reloaded.ClientID)
	assert.Equal(t, server.URL, reloaded.TokenURI)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrRefresh_ExpiredWithoutRefreshToken(t *testing.T) {
	path := writeTokenFile(t, t.TempDir(), map[string]any{
		"token":  "access-1",
		"expiry": "2020-01-01T00:00:00Z",
	})

	_, err := LoadOrRefresh(context.Background(), NewFileStore(path))

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrCredential)
	assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
	assert.Contains(t, err.Error(), "oauth-setup")
}

func TestLoadOrRefresh_MissingFile(t *testing.T) {
	_, err := LoadOrRefresh(context.Background(), NewFileStore(filepath.Join(t.TempDir(), "token.json")))

	assert.ErrorIs(t, err, apperr.ErrCredentialMissing)
}

func TestLoadOrRefresh_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadOrRefresh(context.Background(), NewFileStore(path))

	assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
}

func TestLoadOrRefresh_RefreshRejected(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	store := &MemoryStore{Cred: &Credential{
		Token:    &oauth2.Token{AccessToken: "old", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour)},
		TokenURI: server.URL,
	}}

	_, err := LoadOrRefresh(context.Background(), store)

	assert.ErrorIs(t, err, apperr.ErrCredentialInvalid)
	assert.Equal(t, 0, store.Persisted)
}

func TestLoadOrRefresh_MemoryStore(t *testing.T) {
	store := &MemoryStore{
		Cred: &Credential{Token: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Minute)}},
		RefreshFunc: func(ctx context.Context, cred *Credential) (*Credential, error) {
			out := *cred
			out.Token = &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
			return &out, nil
		},
	}

	cred, err := LoadOrRefresh(context.Background(), store)

	require.NoError(t, err)
	assert.Equal(t, "new", cred.Token.AccessToken)
	assert.Equal(t, 1, store.Persisted)
	assert.Equal(t, "new", store.Cred.Token.AccessToken)
}

func TestLoadOrRefresh_RefreshTokenOnly(t *testing.T) {
	store := &MemoryStore{
		Cred: &Credential{Token: &oauth2.Token{RefreshToken: "r"}},
		RefreshFunc: func(ctx context.Context, cred *Credential) (*Credential, error) {
			return &Credential{Token: &oauth2.Token{AccessToken: "new", RefreshToken: "r"}}, nil
		},
	}

	cred, err := LoadOrRefresh(context.Background(), store)

	require.NoError(t, err)
	assert.True(t, cred.Valid())
}

func TestLoadOrRefresh_MissingInMemory(t *testing.T) {
	_, err := LoadOrRefresh(context.Background(), &MemoryStore{})
	assert.ErrorIs(t, err, apperr.ErrCredentialMissing)
}

func TestLoadOrRefresh_PersistFailure(t *testing.T) {
	store := &failingPersistStore{MemoryStore: MemoryStore{
		Cred: &Credential{Token: &oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now().Add(-time.Minute)}},
		RefreshFunc: func(ctx context.Context, cred *Credential) (*Credential, error) {
			return &Credential{Token: &oauth2.Token{AccessToken: "new"}}, nil
		},
	}}

	_, err := LoadOrRefresh(context.Background(), store)

	assert.ErrorIs(t, err, apperr.ErrCredential)
}

type failingPersistStore struct {
	MemoryStore
}

func (s *failingPersistStore) Persist(ctx context.Context, cred *Credential) error {
	return errors.New("disk full")
}

func TestCredentialJSON(t *testing.T) {
	expiry := time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)
	cred := &Credential{
		Token:        &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", Expiry: expiry},
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURI:     "https://oauth2.googleapis.com/token",
		Scopes:       DefaultScopes,
	}

	data, err := cred.MarshalJSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "a", raw["token"])
	assert.Equal(t, "r", raw["refresh_token"])
	assert.Equal(t, "cid", raw["client_id"])
	assert.Equal(t, "2026-10-17T08:30:00Z", raw["expiry"])

	var decoded Credential
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, "a", decoded.Token.AccessToken)
	assert.True(t, decoded.Token.Expiry.Equal(expiry))
	assert.Equal(t, "https://oauth2.googleapis.com/token", decoded.TokenURI)
}

func TestCredentialJSON_AcceptsAccessTokenKeyAndNaiveExpiry(t *testing.T) {
	var cred Credential
	require.NoError(t, cred.UnmarshalJSON([]byte(`{"access_token":"a","expiry":"2026-10-17T08:30:00.123456"}`)))

	assert.Equal(t, "a", cred.Token.AccessToken)
	assert.Equal(t, time.UTC, cred.Token.Expiry.Location())
	assert.Equal(t, 8, cred.Token.Expiry.Hour())
}

func TestCredentialExpired(t *testing.T) {
	assert.False(t, (&Credential{Token: &oauth2.Token{AccessToken: "a"}}).Expired())
	assert.True(t, (&Credential{Token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Second)}}).Expired())
	assert.False(t, (&Credential{Token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}}).Expired())
}

func writeClientSecret(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConsent_RunConsole(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	dir := t.TempDir()
	cfg, err := LoadClientSecret(writeClientSecret(t, dir, server.URL))
	require.NoError(t, err)
	assert.Equal(t, DefaultScopes, cfg.Scopes)

	store := NewFileStore(filepath.Join(dir, "data", "token.json"))
	consent := NewConsent(cfg, store, logger.Nop())

	var out strings.Builder
	cred, err := consent.RunConsole(context.Background(), 8080, strings.NewReader("code-1\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "access_type=offline")
	assert.Contains(t, out.String(), url.QueryEscape("http://localhost:8080/"))
	assert.Equal(t, "access-1", cred.Token.AccessToken)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", saved.Token.RefreshToken)
	assert.Equal(t, "cid", saved.ClientID)
	assert.Equal(t, "csecret", saved.ClientSecret)
	assert.Equal(t, server.URL, saved.TokenURI)
}

func TestConsent_RunConsole_RedirectURL(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	dir := t.TempDir()
	cfg, err := LoadClientSecret(writeClientSecret(t, dir, server.URL))
	require.NoError(t, err)
	store := &MemoryStore{}
	consent := NewConsent(cfg, store, logger.Nop())

	// Feed the pasted URL through a pipe so the state printed in the
	// authorization URL can be echoed back.
	pr, pw := io.Pipe()
	defer pw.Close()
	var out syncBuilder
	done := make(chan error, 1)
	go func() {
		_, err := consent.RunConsole(context.Background(), 8080, pr, &out)
		done <- err
	}()

	var state string
	require.Eventually(t, func() bool {
		for _, line := range strings.Split(out.String(), "\n") {
			if u, err := url.Parse(strings.TrimSpace(line)); err == nil && u.Query().Get("state") != "" {
				state = u.Query().Get("state")
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	_, err = pw.Write([]byte("http://localhost:8080/?state=" + state + "&code=code-1&scope=gmail.send\n"))
	require.NoError(t, err)

	require.NoError(t, <-done)
	assert.Equal(t, 1, store.Persisted)
}

func TestConsent_RunLocalServer(t *testing.T) {
	var calls int32
	server := newTokenServer(t, &calls)
	defer server.Close()

	dir := t.TempDir()
	cfg, err := LoadClientSecret(writeClientSecret(t, dir, server.URL))
	require.NoError(t, err)
	store := &MemoryStore{}
	consent := NewConsent(cfg, store, logger.Nop())

	consent.Prompt = func(authURL string) {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		redirect := u.Query().Get("redirect_uri")
		state := u.Query().Get("state")

		go func() {
			resp, err := http.Get(redirect + "?code=code-1&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	cred, err := consent.RunLocalServer(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.Token.AccessToken)
	assert.Equal(t, 1, store.Persisted)
}

func TestConsent_RunLocalServer_ContextCancelled(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "cid", Endpoint: oauth2.Endpoint{AuthURL: "https://example.com/auth", TokenURL: "https://example.com/token"}}
	consent := NewConsent(cfg, &MemoryStore{}, logger.Nop())
	consent.Prompt = func(string) {}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := consent.RunLocalServer(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCodeFromInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare code", input: "4/0Ab-xyz", want: "4/0Ab-xyz"},
		{name: "redirect url", input: "http://localhost:8080/?state=s1&code=c1", want: "c1"},
		{name: "state mismatch", input: "http://localhost:8080/?state=other&code=c1", wantErr: true},
		{name: "denied", input: "http://localhost:8080/?state=s1&error=access_denied", wantErr: true},
		{name: "no code", input: "http://localhost:8080/?state=s1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codeFromInput(tt.input, "s1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadClientSecret_Missing(t *testing.T) {
	_, err := LoadClientSecret(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// syncBuilder is a strings.Builder safe for one writer and one reader
type syncBuilder struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuilder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuilder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
