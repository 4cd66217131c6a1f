package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darwinia-network/bridge-relay/ledger"
)

const (
	alice = ledger.AccountID("alice")
	bob   = ledger.AccountID("bob")
	game  = ledger.LockID("game")
	fee   = ledger.LockID("fee")
)

func TestMemoryLocks(t *testing.T) {
	m := ledger.NewMemory()
	m.Deposit(alice, 100)

	require.NoError(t, m.Lock(alice, game, 30))
	require.NoError(t, m.Lock(alice, game, 20))
	require.NoError(t, m.Lock(alice, fee, 10))
	assert.EqualValues(t, 50, m.Locked(alice, game))
	assert.EqualValues(t, 40, m.UsableBalance(alice))

	require.ErrorIs(t, m.Lock(alice, game, 41), ledger.ErrInsufficientBalance)
	require.ErrorIs(t, m.SetLock(alice, game, 91), ledger.ErrInsufficientBalance)

	require.NoError(t, m.SetLock(alice, game, 90))
	assert.EqualValues(t, 0, m.UsableBalance(alice))

	require.NoError(t, m.SetLock(alice, game, 0))
	require.NoError(t, m.SetLock(alice, fee, 0))
	assert.EqualValues(t, 100, m.UsableBalance(alice))
	assert.EqualValues(t, 0, m.Locked(alice, game))
}

func TestMemoryTransferAndSlash(t *testing.T) {
	m := ledger.NewMemory()
	m.Deposit(alice, 100)
	require.NoError(t, m.Lock(alice, game, 60))

	require.ErrorIs(t, m.Transfer(alice, bob, 41), ledger.ErrInsufficientBalance)
	require.NoError(t, m.Transfer(alice, bob, 40))
	assert.EqualValues(t, 60, m.FreeBalance(alice))
	assert.EqualValues(t, 40, m.UsableBalance(bob))

	burned, err := m.Slash(bob, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 40, burned)
	assert.EqualValues(t, 40, m.Burned())
	assert.EqualValues(t, 0, m.FreeBalance(bob))

	assert.Equal(t, []ledger.AccountID{alice, bob}, m.Accounts())
}

func TestMemoryRepatriateIgnoresLocks(t *testing.T) {
	m := ledger.NewMemory()
	m.Deposit(alice, 100)
	require.NoError(t, m.Lock(alice, game, 30))
	require.NoError(t, m.Lock(alice, fee, 70))
	require.ErrorIs(t, m.Transfer(alice, bob, 10), ledger.ErrInsufficientBalance)

	moved, err := m.Repatriate(alice, bob, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, moved)
	assert.EqualValues(t, 90, m.FreeBalance(alice))
	assert.EqualValues(t, 10, m.UsableBalance(bob))

	moved, err = m.Repatriate(alice, bob, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 90, moved)
	assert.EqualValues(t, 0, m.FreeBalance(alice))
	assert.EqualValues(t, 100, m.FreeBalance(bob))
	assert.EqualValues(t, 0, m.Burned())
}
