package credential

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
)

// Store is the persistence boundary for the mailbox credential.
type Store interface {
	// Load returns the stored credential, or an apperr credential error
	// with subtype "missing" when there is none.
	Load(ctx context.Context) (*Credential, error)
	// Refresh exchanges the refresh token for a new access token.
	Refresh(ctx context.Context, cred *Credential) (*Credential, error)
	// Persist replaces the stored credential.
	Persist(ctx context.Context, cred *Credential) error
}

const rerunSetup = "run oauth-setup to mint a new token"

// LoadOrRefresh returns a credential that is valid right now, refreshing and
// persisting it when the stored one has expired.
func LoadOrRefresh(ctx context.Context, store Store) (*Credential, error) {
	cred, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrCredential) {
			return nil, err
		}
		return nil, apperr.CredentialInvalid("failed to load token; "+rerunSetup, err)
	}

	if cred.Valid() {
		return cred, nil
	}

	if !cred.Refreshable() {
		return nil, apperr.CredentialInvalid("token is invalid and has no refresh token; "+rerunSetup, nil)
	}

	refreshed, err := store.Refresh(ctx, cred)
	if err != nil {
		return nil, apperr.CredentialInvalid("token refresh failed; "+rerunSetup, err)
	}
	if err := store.Persist(ctx, refreshed); err != nil {
		return nil, apperr.CredentialInvalid("failed to persist refreshed token", err)
	}

	return refreshed, nil
}

// OAuthRefresh refreshes cred against its token endpoint. The previous
// refresh token is kept when the provider does not rotate it.
func OAuthRefresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred == nil || cred.Token == nil || cred.Token.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	src := cred.OAuthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: cred.Token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("oauth2 refresh: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.Token.RefreshToken
	}

	out := *cred
	out.Token = tok
	return &out, nil
}

// MemoryStore keeps the credential in memory.
type MemoryStore struct {
	Cred *Credential
	// RefreshFunc defaults to OAuthRefresh
	RefreshFunc func(ctx context.Context, cred *Credential) (*Credential, error)
	Persisted   int
}

var _ Store = (*MemoryStore)(nil)

// Load returns the held credential.
func (s *MemoryStore) Load(ctx context.Context) (*Credential, error) {
	if s.Cred == nil {
		return nil, apperr.CredentialMissing("no credential in memory; "+rerunSetup, nil)
	}
	c := *s.Cred
	return &c, nil
}

// Refresh delegates to RefreshFunc.
func (s *MemoryStore) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if s.RefreshFunc != nil {
		return s.RefreshFunc(ctx, cred)
	}
	return OAuthRefresh(ctx, cred)
}

// Persist replaces the held credential.
func (s *MemoryStore) Persist(ctx context.Context, cred *Credential) error {
	c := *cred
	s.Cred = &c
	s.Persisted++
	return nil
}
