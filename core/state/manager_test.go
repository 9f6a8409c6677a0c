package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plebbit/plebbit-tipping-v1/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestJournalCommit(t *testing.T) {
	mgr, db := newTestManager(t)
	addr := []byte{0x01}

	require.NoError(t, mgr.SetBalance(addr, big.NewInt(42)))
	require.Equal(t, 1, mgr.Dirty())

	// The journal is visible through the manager before it reaches the database.
	balance, err := mgr.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, int64(42), balance.Int64())
	fresh, err := NewManager(db).Balance(addr)
	require.NoError(t, err)
	require.Zero(t, fresh.Sign())

	require.NoError(t, mgr.Commit())
	require.Zero(t, mgr.Dirty())
	persisted, err := NewManager(db).Balance(addr)
	require.NoError(t, err)
	require.Equal(t, int64(42), persisted.Int64())
}

func TestJournalDiscard(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := []byte{0x02}

	require.NoError(t, mgr.SetBalance(addr, big.NewInt(7)))
	require.NoError(t, mgr.Commit())

	require.NoError(t, mgr.SetBalance(addr, big.NewInt(1)))
	require.NoError(t, mgr.SetRole("tipping.moderator", addr))
	mgr.Discard()

	balance, err := mgr.Balance(addr)
	require.NoError(t, err)
	require.Equal(t, int64(7), balance.Int64())
	require.False(t, mgr.HasRole("tipping.moderator", addr))
}

func TestJournalDeleteCommits(t *testing.T) {
	mgr, db := newTestManager(t)
	addr := []byte{0x03}

	require.NoError(t, mgr.SetBalance(addr, big.NewInt(5)))
	require.NoError(t, mgr.Commit())
	require.NoError(t, mgr.SetBalance(addr, big.NewInt(0)))
	require.NoError(t, mgr.Commit())

	_, err := db.Get(accountKey(balancePrefix, addr))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRoles(t *testing.T) {
	mgr, _ := newTestManager(t)
	a, b := []byte{0x0b}, []byte{0x0a}

	require.NoError(t, mgr.SetRole("tipping.moderator", a))
	require.NoError(t, mgr.SetRole("tipping.moderator", b))
	require.NoError(t, mgr.SetRole("tipping.moderator", a))

	members, err := mgr.RoleMembers("tipping.moderator")
	require.NoError(t, err)
	require.Equal(t, [][]byte{b, a}, members)
	require.True(t, mgr.HasRole("tipping.moderator", a))
	require.False(t, mgr.HasRole("tipping.admin", a))

	require.NoError(t, mgr.RemoveRole("tipping.moderator", a))
	require.NoError(t, mgr.RemoveRole("tipping.moderator", a))
	require.False(t, mgr.HasRole("tipping.moderator", a))
	require.True(t, mgr.HasRole("tipping.moderator", b))

	require.NoError(t, mgr.RemoveRole("tipping.moderator", b))
	members, err = mgr.RoleMembers("tipping.moderator")
	require.NoError(t, err)
	require.Empty(t, members)

	require.Error(t, mgr.SetRole(" ", a))
	require.Error(t, mgr.SetRole("tipping.admin", nil))
}

func TestPayableDefaults(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := []byte{0x04}

	payable, err := mgr.Payable(addr)
	require.NoError(t, err)
	require.True(t, payable)

	require.NoError(t, mgr.SetPayable(addr, false))
	payable, err = mgr.Payable(addr)
	require.NoError(t, err)
	require.False(t, payable)

	require.NoError(t, mgr.SetPayable(addr, true))
	payable, err = mgr.Payable(addr)
	require.NoError(t, err)
	require.True(t, payable)
}

func TestNegativeBalanceRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.Error(t, mgr.SetBalance([]byte{0x05}, big.NewInt(-1)))
	require.Error(t, mgr.SetBalance(nil, big.NewInt(1)))
}
