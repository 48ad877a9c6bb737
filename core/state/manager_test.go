package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"contentchain/storage"
)

type record struct {
	Name   string
	Amount *big.Int
	Flag   bool
}

func TestKVRoundTripAndCommit(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)

	require.NoError(t, m.KVPut([]byte("rec"), &record{Name: "a", Amount: big.NewInt(42), Flag: true}))
	var got record
	ok, err := m.KVGet([]byte("rec"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", got.Name)
	require.Equal(t, 0, got.Amount.Cmp(big.NewInt(42)))
	require.Equal(t, 0, db.Len())

	require.NoError(t, m.Commit())
	require.Equal(t, 1, db.Len())

	fresh := NewManager(db)
	var reloaded record
	ok, err = fresh.KVGet([]byte("rec"), &reloaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, reloaded.Flag)
}

func TestRevertToSnapshot(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.KVPut([]byte("a"), uint64(1)))
	snap := m.Snapshot()
	require.NoError(t, m.KVPut([]byte("a"), uint64(2)))
	require.NoError(t, m.KVPut([]byte("b"), uint64(3)))
	require.NoError(t, m.KVDelete([]byte("a")))

	ok, err := m.KVGet([]byte("a"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	m.RevertToSnapshot(snap)

	var a uint64
	ok, err = m.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), a)
	ok, err = m.KVGet([]byte("b"), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevertRestoresCommittedValue(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	require.NoError(t, m.KVPut([]byte("k"), "committed"))
	require.NoError(t, m.Commit())

	snap := m.Snapshot()
	require.NoError(t, m.KVPut([]byte("k"), "dirty"))
	m.RevertToSnapshot(snap)

	var v string
	ok, err := m.KVGet([]byte("k"), &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "committed", v)
	require.Equal(t, 0, m.Pending())
}

func TestCommitDeletes(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	require.NoError(t, m.KVPut([]byte("k"), uint64(9)))
	require.NoError(t, m.Commit())
	require.NoError(t, m.KVDelete([]byte("k")))
	require.NoError(t, m.Commit())
	require.Equal(t, 0, db.Len())
}

func TestKVAppendDeduplicates(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.KVAppend([]byte("idx"), []byte{1}))
	require.NoError(t, m.KVAppend([]byte("idx"), []byte{2}))
	require.NoError(t, m.KVAppend([]byte("idx"), []byte{1}))

	var list [][]byte
	require.NoError(t, m.KVGetList([]byte("idx"), &list))
	require.Len(t, list, 2)

	var empty [][]byte
	require.NoError(t, m.KVGetList([]byte("missing"), &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)
}
