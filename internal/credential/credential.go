package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// DefaultScopes restricts the credential to sending mail as the user.
var DefaultScopes = []string{gmail.GmailSendScope}

// Credential is OAuth2 token material for the mailbox provider, together
// with the client it was issued to so it can be refreshed on its own.
type Credential struct {
	Token        *oauth2.Token
	ClientID     string
	ClientSecret string
	TokenURI     string
	Scopes       []string
}

// Valid reports whether the access token can be used as is.
func (c *Credential) Valid() bool {
	return c != nil && c.Token != nil && c.Token.Valid()
}

// Expired reports whether the access token carries an expiry in the past.
func (c *Credential) Expired() bool {
	if c == nil || c.Token == nil || c.Token.Expiry.IsZero() {
		return false
	}
	return !c.Token.Expiry.After(time.Now())
}

// Refreshable reports whether the credential is not usable as is but holds
// a refresh token.
func (c *Credential) Refreshable() bool {
	if c == nil || c.Token == nil || c.Token.RefreshToken == "" {
		return false
	}
	return !c.Token.Valid()
}

// OAuthConfig rebuilds the client configuration the token was issued for.
func (c *Credential) OAuthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if c.TokenURI != "" {
		endpoint.TokenURL = c.TokenURI
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       c.Scopes,
	}
}

// HTTPClient returns a client authorizing requests with the access token.
func (c *Credential) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(c.Token))
}

// tokenFile is the on-disk layout. It follows the "authorized user" JSON
// format so files minted by other OAuth tooling load unchanged; the
// access_token key is accepted as well when reading.
type tokenFile struct {
	Token        string   `json:"token"`
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// MarshalJSON encodes the credential in the token-file layout.
func (c *Credential) MarshalJSON() ([]byte, error) {
	tf := tokenFile{
		TokenURI:     c.TokenURI,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
	}
	if c.Token != nil {
		tf.Token = c.Token.AccessToken
		tf.RefreshToken = c.Token.RefreshToken
		tf.TokenType = c.Token.TokenType
		if !c.Token.Expiry.IsZero() {
			tf.Expiry = c.Token.Expiry.UTC().Format(time.RFC3339Nano)
		}
	}
	return json.MarshalIndent(tf, "", "  ")
}

// UnmarshalJSON decodes the token-file layout.
func (c *Credential) UnmarshalJSON(data []byte) error {
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return err
	}

	tok := &oauth2.Token{
		AccessToken:  tf.Token,
		RefreshToken: tf.RefreshToken,
		TokenType:    tf.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = tf.AccessToken
	}
	if tf.Expiry != "" {
		expiry, err := parseExpiry(tf.Expiry)
		if err != nil {
			return fmt.Errorf("invalid expiry %q: %w", tf.Expiry, err)
		}
		tok.Expiry = expiry
	}

	*c = Credential{
		Token:        tok,
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		TokenURI:     tf.TokenURI,
		Scopes:       tf.Scopes,
	}
	return nil
}

// parseExpiry accepts RFC 3339 timestamps and the zone-less UTC form some
// tools write.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}
