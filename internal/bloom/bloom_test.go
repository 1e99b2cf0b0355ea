package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertedKeysAreContained(t *testing.T) {
	f := New(DefaultNumBits, DefaultK)
	for i := 0; i < 200; i++ {
		f.Insert([]byte(fmt.Sprintf("key-%d", i)))
	}
	for i := 0; i < 200; i++ {
		require.True(t, f.Contains([]byte(fmt.Sprintf("key-%d", i))))
	}
	require.Equal(t, 200, f.ObjectCount())
	require.False(t, f.Empty())
}

func TestClearResetsFilter(t *testing.T) {
	f := New(DefaultNumBits, DefaultK)
	f.Insert([]byte("a"))
	require.True(t, f.Contains([]byte("a")))
	f.Clear()
	require.True(t, f.Empty())
	require.False(t, f.Contains([]byte("a")))
}

func TestLoadReconstructsFilter(t *testing.T) {
	f := New(DefaultNumBits, DefaultK)
	f.Insert([]byte("x"))
	f.Insert([]byte("y"))

	loaded := Load(f.Bytes(), f.NumBits(), f.K(), f.ObjectCount())
	require.True(t, loaded.Contains([]byte("x")))
	require.True(t, loaded.Contains([]byte("y")))
	require.Equal(t, 2, loaded.ObjectCount())
}

func TestAbsentKeyUsuallyNotContained(t *testing.T) {
	f := New(DefaultNumBits, DefaultK)
	for i := 0; i < 50; i++ {
		f.Insert([]byte(fmt.Sprintf("present-%d", i)))
	}
	falsePositives := 0
	for i := 0; i < 50; i++ {
		if f.Contains([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	require.Less(t, falsePositives, 10)
}
