package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslahtp/menti-clone/internal/domain"
	"github.com/aslahtp/menti-clone/internal/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	p := NewTokenProvider("test-secret", "menti", time.Hour)

	token, err := p.Issue(domain.User{ID: 42, Name: "Alice", Role: domain.RoleAdmin})
	require.NoError(t, err)

	got, err := p.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, domain.Identity{UserID: 42, Name: "Alice", Role: domain.RoleAdmin}, got)
	assert.True(t, got.IsAdmin())
}

func TestVerifyRejections(t *testing.T) {
	p := NewTokenProvider("test-secret", "menti", time.Hour)

	t.Run("empty token", func(t *testing.T) {
		_, err := p.Verify("")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeUnauthenticated))
		assert.Equal(t, "No token provided", errors.Convert(err).Message)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := p.Verify("not.a.jwt")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeUnauthenticated))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := p.Issue(domain.User{ID: 1, Name: "Bob", Role: domain.RoleUser})
		require.NoError(t, err)

		other := NewTokenProvider("different-secret", "menti", time.Hour)
		_, err = other.Verify(token)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeUnauthenticated))
	})

	t.Run("expired token", func(t *testing.T) {
		short := NewTokenProvider("test-secret", "menti", -time.Minute)
		token, err := short.Issue(domain.User{ID: 1, Name: "Bob", Role: domain.RoleUser})
		require.NoError(t, err)

		_, err = p.Verify(token)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeUnauthenticated))
	})
}
