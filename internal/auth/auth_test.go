package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/gatekeeper/internal/rbac"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/token"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	clock  *testClock
	tokens *token.Service
	users  *users.Service
	roles  *rbac.Service
	dir    *Directory
	alice  users.User
}

func secret(fill string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat(fill, 40)))
}

// newEnv builds in-memory stores with defaults initialized and one USER
// member named alice.
func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	tokens, err := token.NewService(token.Config{AccessSecret: secret("a"), RefreshSecret: secret("r")}, token.WithClock(clock.Now))
	require.NoError(t, err)

	userSvc := users.NewService(users.NewMemoryStore(), nil, users.WithBcryptCost(bcrypt.MinCost))
	roleSvc := rbac.NewService(rbac.NewMemoryStore(), userSvc, nil)
	_, err = roleSvc.InitializeDefaults(ctx)
	require.NoError(t, err)

	alice, err := userSvc.Create(ctx, users.CreateInput{Username: "alice", Email: "alice@example.com", Password: "alice-pass"})
	require.NoError(t, err)
	userRole, err := roleSvc.GetRoleByName(ctx, shared.AuthorityUser)
	require.NoError(t, err)
	require.NoError(t, roleSvc.AssignRoleToUser(ctx, alice.ID, userRole.ID))

	return env{
		clock:  clock,
		tokens: tokens,
		users:  userSvc,
		roles:  roleSvc,
		dir:    NewDirectory(userSvc, roleSvc),
		alice:  alice,
	}
}
