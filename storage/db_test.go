package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
	got, err := db.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, db.Delete([]byte("k1")))
	_, err = db.Get([]byte("k1"))
	require.ErrorIs(t, err, ErrNotFound)

	batcher, ok := db.(Batcher)
	require.True(t, ok)
	require.NoError(t, db.Put([]byte("gone"), []byte("x")))
	require.NoError(t, batcher.WriteBatch(map[string][]byte{"a": []byte("1"), "b": []byte("2")}, []string{"gone"}))
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
	_, err = db.Get([]byte("gone"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	exerciseDatabase(t, db)
	require.Equal(t, 2, db.Len())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestLevelDBPersists(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	exerciseDatabase(t, db1)
	require.NoError(t, db1.Close())

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
}

func TestBoltDBPersists(t *testing.T) {
	dir := t.TempDir()

	db1, err := Open(BackendBolt, dir)
	require.NoError(t, err)
	exerciseDatabase(t, db1)
	require.NoError(t, db1.Close())

	db2, err := Open(BackendBolt, dir)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocksdb", t.TempDir())
	require.Error(t, err)

	_, err = Open(BackendLevelDB, "")
	require.Error(t, err)
}
