package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/weeklymenu/weeklymenu/internal/apperr"
)

// FileStore keeps the credential in a JSON token file. Writes are atomic and
// serialized across processes with an advisory lock on "<path>.lock".
type FileStore struct {
	path   string
	scopes []string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for path. Loaded credentials are
// restricted to scopes (DefaultScopes when empty).
func NewFileStore(path string, scopes ...string) *FileStore {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &FileStore{path: path, scopes: scopes}
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the token file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and decodes the token file.
func (s *FileStore) Load(ctx context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.CredentialMissing(fmt.Sprintf("token file %s not found; %s", s.path, rerunSetup), err)
		}
		return nil, apperr.CredentialInvalid(fmt.Sprintf("failed to read token file %s", s.path), err)
	}

	var cred Credential
	if err := cred.UnmarshalJSON(data); err != nil {
		return nil, apperr.CredentialInvalid(fmt.Sprintf("token file %s is malformed; %s", s.path, rerunSetup), err)
	}
	cred.Scopes = s.scopes

	return &cred, nil
}

// Refresh refreshes against the credential's token endpoint.
func (s *FileStore) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	return OAuthRefresh(ctx, cred)
}

// Persist overwrites the token file in full.
func (s *FileStore) Persist(ctx context.Context, cred *Credential) error {
	data, err := cred.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock token file: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock token file %s", s.path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
