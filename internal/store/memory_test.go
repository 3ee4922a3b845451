package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/record"
)

func sampleTree() Tree {
	b := NewBuilder()
	b.Person("I1", "John", "Smith").Born("1850-03-01").Died("abt 1920")
	b.Person("I2", "Mary", "Jones").Event(record.EventBaptism, "1852")
	b.Person("I3", "Ann", "Smith")
	b.Family("F1", "I1", "I2", "I3").Event(record.EventMarriage, "1875-06")
	return b.Tree()
}

func TestMemoryLookups(t *testing.T) {
	m := NewMemory(sampleTree())
	ctx := context.Background()

	p, err := m.Person(ctx, "I3")
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", p.DisplayName())
	assert.Equal(t, []string{"F1"}, p.ParentFamilies)

	f, err := m.Family(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, "I2", f.Spouse("I1"))
	require.Len(t, f.Events, 1)
	assert.Equal(t, record.RoleFamily, f.Events[0].Role)

	ev, err := m.Event(ctx, f.Events[0].Handle)
	require.NoError(t, err)
	assert.Equal(t, date.New(1875, 6, 0), ev.Date)

	_, err = m.Person(ctx, "nobody")
	assert.True(t, record.IsNotFound(err))

	handles, err := m.PersonHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"I1", "I2", "I3"}, handles)
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory(sampleTree())
	ctx := context.Background()

	p, err := m.Person(ctx, "I1")
	require.NoError(t, err)
	p.Families[0] = "changed"
	p.Name.Given = "changed"

	again, err := m.Person(ctx, "I1")
	require.NoError(t, err)
	assert.Equal(t, "F1", again.Families[0])
	assert.Equal(t, "John", again.Name.Given)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	tree := NewMemory(sampleTree()).Tree()
	require.NoError(t, WriteFile(path, tree))

	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tree, m.Tree())

	p, f, e := m.Len()
	assert.Equal(t, 3, p)
	assert.Equal(t, 1, f)
	assert.Equal(t, 4, e)
}

func TestDecodeTreeRejectsUnknownFields(t *testing.T) {
	_, err := DecodeTree([]byte("persons:\n  - handle: I1\n    nickname: Jack\n"))
	assert.Error(t, err)
}

func TestDecodeTreeJSON(t *testing.T) {
	tree, err := DecodeTree([]byte(`{"persons":[{"handle":"I1","birth":{"handle":"E1"}}],"events":[{"handle":"E1","type":"birth","date":"bef 1900"}]}`))
	require.NoError(t, err)
	m := NewMemory(tree)

	ev, err := m.Event(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, record.EventBirth, ev.Type)
	assert.Equal(t, date.Before(date.Year(1900)), ev.Date)
}
