package storage

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResultCache_PutGet(t *testing.T) {
	c := NewResultCache(time.Minute)
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))

	id := c.Put(img)
	require.NotEmpty(t, id)
	require.Equal(t, 1, c.Len())

	got, ok := c.Get(id)
	require.True(t, ok)
	require.Equal(t, img.Bounds(), got.Bounds())
}

func TestResultCache_UnknownID(t *testing.T) {
	c := NewResultCache(time.Minute)

	_, ok := c.Get("not-a-uuid")
	require.False(t, ok)

	_, ok = c.Get("0b6e3f7c-2f3c-4a55-9d5e-6c1b6f9f6a10")
	require.False(t, ok)
}

func TestResultCache_Expires(t *testing.T) {
	c := NewResultCache(20 * time.Millisecond)
	id := c.Put(image.NewRGBA(image.Rect(0, 0, 1, 1)))

	require.Eventually(t, func() bool {
		_, ok := c.Get(id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
