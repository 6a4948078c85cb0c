package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name    string
		err     error
		matches []error
		misses  []error
	}{
		{
			name:    "configuration",
			err:     Configuration("%s is required", "SENDER_EMAIL"),
			matches: []error{ErrConfiguration},
			misses:  []error{ErrUpstream, ErrParse, ErrCredential},
		},
		{
			name:    "upstream",
			err:     Upstream("chat completion failed", cause),
			matches: []error{ErrUpstream, cause},
			misses:  []error{ErrConfiguration, ErrCredential},
		},
		{
			name:    "parse",
			err:     Parse("dishes is empty", nil),
			matches: []error{ErrParse},
			misses:  []error{ErrUpstream},
		},
		{
			name:    "credential missing",
			err:     CredentialMissing("token file not found", cause),
			matches: []error{ErrCredential, ErrCredentialMissing, cause},
			misses:  []error{ErrCredentialInvalid},
		},
		{
			name:    "credential invalid",
			err:     CredentialInvalid("no refresh token", nil),
			matches: []error{ErrCredential, ErrCredentialInvalid},
			misses:  []error{ErrCredentialMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("job: %w", tt.err)
			for _, target := range tt.matches {
				assert.ErrorIs(t, wrapped, target)
			}
			for _, target := range tt.misses {
				assert.NotErrorIs(t, wrapped, target)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Upstream("gmail send failed", errors.New("403 forbidden"))
	assert.Equal(t, "upstream: gmail send failed: 403 forbidden", err.Error())

	err = Configuration("MAMMOUTH_API_KEY is required")
	assert.Equal(t, "configuration: MAMMOUTH_API_KEY is required", err.Error())
}
