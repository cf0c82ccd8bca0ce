package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testJobInfo struct {
	InputPath string
}

func TestStoreAndRetrieve(t *testing.T) {
	c := New[testJobInfo]()
	c.Store(
		"job-1",
		testJobInfo{
			InputPath: "/uploads/movie.mp4",
		},
	)
	require.Equal(t, "/uploads/movie.mp4", c.Get("job-1").InputPath)
	require.Equal(t, 1, c.Len())

	_, ok := c.Lookup("job-2")
	require.False(t, ok)
	require.Equal(t, "", c.Get("job-2").InputPath)
}

func TestStoreAndRemove(t *testing.T) {
	c := New[*testJobInfo]()
	c.Store("job-1", &testJobInfo{InputPath: "/uploads/movie.mp4"})
	c.Remove("job-1")
	require.Nil(t, c.Get("job-1"))
	require.Equal(t, 0, c.Len())
}

func TestStoreIfAbsent(t *testing.T) {
	c := New[int]()
	require.True(t, c.StoreIfAbsent("job-1", 1))
	require.False(t, c.StoreIfAbsent("job-1", 2))
	require.Equal(t, 1, c.Get("job-1"))
}

func TestGetKeysSorted(t *testing.T) {
	c := New[int]()
	c.Store("b", 1)
	c.Store("c", 2)
	c.Store("a", 3)
	require.Equal(t, []string{"a", "b", "c"}, c.GetKeys())
}
