package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblsm-go/oblsm/internal/base"
)

func TestPutThenGet(t *testing.T) {
	m := New(0, base.DefaultComparer)
	m.Put(1, []byte("k"), []byte("v1"))
	v, err := m.Get([]byte("k"), 10)
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))
}

func TestGetRespectsSnapshotSeq(t *testing.T) {
	m := New(0, base.DefaultComparer)
	m.Put(1, []byte("k"), []byte("v1"))
	m.Put(5, []byte("k"), []byte("v5"))

	v, err := m.Get([]byte("k"), 1)
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	v, err = m.Get([]byte("k"), 5)
	require.NoError(t, err)
	require.Equal(t, "v5", string(v))

	_, err = m.Get([]byte("k"), 0)
	require.True(t, base.IsNotFound(err))
}

func TestDeleteShadowsOlderValue(t *testing.T) {
	m := New(0, base.DefaultComparer)
	m.Put(1, []byte("k"), []byte("v1"))
	m.Delete(2, []byte("k"))

	_, err := m.Get([]byte("k"), 2)
	require.True(t, base.IsNotFound(err))

	v, err := m.Get([]byte("k"), 1)
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))
}

func TestApproximateMemoryUsageGrows(t *testing.T) {
	m := New(0, base.DefaultComparer)
	before := m.ApproximateMemoryUsage()
	m.Put(1, []byte("k"), []byte("value"))
	require.Greater(t, m.ApproximateMemoryUsage(), before)
}

func TestRefCounting(t *testing.T) {
	m := New(0, base.DefaultComparer)
	m.Ref()
	m.Ref()
	require.False(t, m.Unref())
	require.True(t, m.Unref())
}
