package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lifespan/internal/record"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteImportAndRead(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	tree := sampleTree()
	require.NoError(t, s.Import(ctx, tree))

	want := NewMemory(tree)
	for _, h := range []string{"I1", "I2", "I3"} {
		got, err := s.Person(ctx, h)
		require.NoError(t, err)
		exp, err := want.Person(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, exp, got, h)
	}

	f, err := s.Family(ctx, "F1")
	require.NoError(t, err)
	exp, err := want.Family(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, exp, f)

	for _, e := range tree.Events {
		got, err := s.Event(ctx, e.Handle)
		require.NoError(t, err)
		assert.Equal(t, e.Date, got.Date)
		assert.Equal(t, e.Type, got.Type)
	}

	handles, err := s.PersonHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"I1", "I2", "I3"}, handles)
}

func TestSQLiteNotFound(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.Person(ctx, "x")
	assert.True(t, record.IsNotFound(err))
	_, err = s.Family(ctx, "x")
	assert.True(t, record.IsNotFound(err))
	_, err = s.Event(ctx, "x")
	assert.True(t, record.IsNotFound(err))
}

func TestSQLiteImportReplaces(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, sampleTree()))

	b := NewBuilder()
	b.Person("I1", "Johnny", "Smith")
	require.NoError(t, s.Import(ctx, b.Tree()))

	p, err := s.Person(ctx, "I1")
	require.NoError(t, err)
	assert.Equal(t, "Johnny", p.Name.Given)
	assert.Nil(t, p.Birth)
}

func TestSQLiteFileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, sampleTree()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.Person(ctx, "I2")
	require.NoError(t, err)
	assert.Equal(t, "Mary", p.Name.Given)
}
