package idempotency

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "idem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newTestRouter(t *testing.T, cache *Cache) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	calls := 0
	r := gin.New()
	r.Use(cache.Middleware())
	r.POST("/borrow", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"borrow_id": calls})
	})
	r.POST("/fail", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusConflict, gin.H{"error": "nope"})
	})
	r.POST("/other", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"route": "other"})
	})
	return r, &calls
}

func post(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReplaySameKey(t *testing.T) {
	r, calls := newTestRouter(t, newTestCache(t))

	first := post(r, "/borrow", "key-1")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replay"))

	second := post(r, "/borrow", "key-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	// Byte for byte the original response, handler untouched.
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, *calls)
}

func TestDistinctKeysRunHandler(t *testing.T) {
	r, calls := newTestRouter(t, newTestCache(t))

	post(r, "/borrow", "key-1")
	post(r, "/borrow", "key-2")
	assert.Equal(t, 2, *calls)
}

func TestNoKeyNoCaching(t *testing.T) {
	r, calls := newTestRouter(t, newTestCache(t))

	post(r, "/borrow", "")
	post(r, "/borrow", "")
	assert.Equal(t, 2, *calls)
}

func TestKeyScopedPerRoute(t *testing.T) {
	r, calls := newTestRouter(t, newTestCache(t))

	post(r, "/borrow", "shared-key")
	w := post(r, "/other", "shared-key")
	assert.Equal(t, 2, *calls)
	assert.Empty(t, w.Header().Get("Idempotent-Replay"))
}

func TestErrorsAreNotCached(t *testing.T) {
	r, calls := newTestRouter(t, newTestCache(t))

	first := post(r, "/fail", "key-1")
	assert.Equal(t, http.StatusConflict, first.Code)

	// A failed call may be retried for real.
	second := post(r, "/fail", "key-1")
	assert.Empty(t, second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, *calls)
}
