package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *sqlx.DB
	clock    *fakeClock
	accounts repository.AccountRepository
	tokens   repository.LinkTokenRepository
	issuer   *TokenIssuer
	verifier *TokenVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.Init(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.RunMigrations(ctx, database.DB, "sqlite"))

	clock := newFakeClock()
	accounts := repository.NewAccountRepository(database)
	tokens := repository.NewLinkTokenRepository(database)

	issuer := NewTokenIssuer(database, accounts, tokens, "http://localhost:3000/", 0)
	issuer.now = clock.Now
	verifier := NewTokenVerifier(database, accounts, tokens)
	verifier.now = clock.Now

	return &testEnv{
		db:       database,
		clock:    clock,
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		verifier: verifier,
	}
}

func (e *testEnv) countAccounts(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM accounts`))
	return n
}

func (e *testEnv) countTokens(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM link_tokens`))
	return n
}
