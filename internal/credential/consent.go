package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// consentTimeout bounds how long the loopback listener waits for the browser
const consentTimeout = 5 * time.Minute

// LoadClientSecret parses an "installed application" client-secret file.
func LoadClientSecret(path string, scopes ...string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	return config, nil
}

// Consent runs the one-time authorization code flow and persists the
// resulting credential.
type Consent struct {
	config *oauth2.Config
	store  Store
	log    *logger.Logger

	// Prompt is called with the authorization URL the operator must open.
	Prompt func(authURL string)
}

// NewConsent creates a Consent for the given client configuration.
func NewConsent(config *oauth2.Config, store Store, log *logger.Logger) *Consent {
	c := &Consent{
		config: config,
		store:  store,
		log:    log.WithComponent("oauth_setup"),
	}
	c.Prompt = func(authURL string) {
		c.log.Info().Msg("open this URL in a browser to authorize")
		fmt.Fprintln(os.Stderr, authURL)
	}
	return c
}

func (c *Consent) authURL(redirect, state string) string {
	cfg := *c.config
	cfg.RedirectURL = redirect
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// RunLocalServer listens on localhost:port, waits for the provider to
// redirect the browser back with a code, and exchanges it. port 0 picks a
// free port.
func (c *Consent) RunLocalServer(ctx context.Context, port int) (*Credential, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen 127.0.0.1:%d: %w", port, err)
	}
	defer ln.Close()

	redirect := fmt.Sprintf("http://localhost:%d/", ln.Addr().(*net.TCPAddr).Port)
	state := uuid.NewString()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "code missing", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization received. You can close this tab.")
		select {
		case codeCh <- code:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	c.log.Info().Str("redirect_url", redirect).Msg("waiting for authorization callback")
	c.Prompt(c.authURL(redirect, state))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-time.After(consentTimeout):
		return nil, errors.New("authorization timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.exchange(ctx, code, redirect)
}

// RunConsole prints the authorization URL and reads back either the code or
// the full URL the browser was redirected to. Nothing needs to listen on the
// redirect port; the operator copies the address bar after consenting.
func (c *Consent) RunConsole(ctx context.Context, port int, in io.Reader, out io.Writer) (*Credential, error) {
	redirect := fmt.Sprintf("http://localhost:%d/", port)
	state := uuid.NewString()

	fmt.Fprintln(out, "Open this URL in a browser and authorize access:")
	fmt.Fprintln(out, c.authURL(redirect, state))
	fmt.Fprintln(out, "Then paste the code, or the full URL you were redirected to:")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	code, err := codeFromInput(strings.TrimSpace(line), state)
	if err != nil {
		return nil, err
	}

	return c.exchange(ctx, code, redirect)
}

// codeFromInput accepts a bare code or a redirect URL carrying code and state.
func codeFromInput(input, state string) (string, error) {
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", errors.New("state mismatch")
	}
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code")
	}
	return code, nil
}

func (c *Consent) exchange(ctx context.Context, code, redirect string) (*Credential, error) {
	cfg := *c.config
	cfg.RedirectURL = redirect

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}

	cred := &Credential{
		Token:        tok,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURI:     cfg.Endpoint.TokenURL,
		Scopes:       cfg.Scopes,
	}
	if err := c.store.Persist(ctx, cred); err != nil {
		return nil, fmt.Errorf("unable to save token: %w", err)
	}

	c.log.Info().Bool("has_refresh_token", tok.RefreshToken != "").Msg("token saved")
	return cred, nil
}
