package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromContextReturnsCopy(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: 7, Subject: "alice", Authorities: []string{AuthorityUser}})

	first, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	first.Authorities[0] = AuthorityAdmin
	first.Authorities = append(first.Authorities, AuthorityAdmin)

	second, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{AuthorityUser}, second.Authorities)
	assert.False(t, second.HasAuthority(AuthorityAdmin))
}

func TestWithIdentityCopiesCallerSlice(t *testing.T) {
	authorities := []string{AuthorityUser}
	ctx := WithIdentity(context.Background(), Identity{UserID: 1, Subject: "bob", Authorities: authorities})
	authorities[0] = AuthorityAdmin

	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{AuthorityUser}, id.Authorities)
}

func TestIdentityFromContextMissing(t *testing.T) {
	id, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
	assert.Zero(t, id)
}
