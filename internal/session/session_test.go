package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/session"
)

func TestResolve_EmptyTokenMintsFreshAccount(t *testing.T) {
	r := session.New()
	token, account, isNew := r.Resolve("")
	assert.True(t, isNew)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, account)
}

func TestResolve_KnownTokenReturnsSameAccount(t *testing.T) {
	r := session.New()
	token, account, _ := r.Resolve("")

	gotToken, gotAccount, isNew := r.Resolve(token)
	assert.False(t, isNew)
	assert.Equal(t, token, gotToken)
	assert.Equal(t, account, gotAccount)
}

func TestResolve_UnknownTokenMintsNewAccount(t *testing.T) {
	r := session.New()
	_, first, _ := r.Resolve("")
	_, second, isNew := r.Resolve("some-unknown-token")
	assert.True(t, isNew)
	assert.NotEqual(t, first, second)
}
