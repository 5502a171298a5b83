package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchCache_SetAndGet(t *testing.T) {
	cache := NewCache(1 * time.Minute)

	cache.Set("https://example.com/a", "<html>content</html>")

	content, ok := cache.Get("https://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, "<html>content</html>", content)
}

func TestFetchCache_Miss(t *testing.T) {
	cache := NewCache(1 * time.Minute)

	content, ok := cache.Get("https://example.com/nonexistent")
	assert.False(t, ok)
	assert.Equal(t, "", content)
}

func TestFetchCache_TTLExpiry(t *testing.T) {
	cache := NewCache(50 * time.Millisecond)

	cache.Set("https://example.com/a", "content")

	content, ok := cache.Get("https://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, "content", content)

	time.Sleep(60 * time.Millisecond)

	content, ok = cache.Get("https://example.com/a")
	assert.False(t, ok)
	assert.Equal(t, "", content)
}

func TestFetchCache_Overwrite(t *testing.T) {
	cache := NewCache(1 * time.Minute)

	cache.Set("https://example.com/a", "old")
	cache.Set("https://example.com/a", "new")

	content, ok := cache.Get("https://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, "new", content)
}
