// Package idempotency replays stored responses for repeated POSTs that
// carry the same Idempotency-Key header, so a client retry after a lost
// response cannot file a second borrow request or payment.
package idempotency

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/gin-gonic/gin"
)

const (
	bucketName = "responses"
	HeaderKey  = "Idempotency-Key"
	ttl        = 24 * time.Hour
)

type record struct {
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"stored_at"`
}

type Cache struct {
	db *bolt.DB
}

// Open creates (or reopens) the replay cache file.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = conn.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Cache{db: conn}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) get(key string) (*record, error) {
	var rec *record
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec != nil && time.Since(rec.StoredAt) > ttl {
		return nil, nil
	}
	return rec, nil
}

func (c *Cache) put(key string, rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), raw)
	})
}

// bodyCapture tees the response so a successful body can be stored.
type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return w.ResponseWriter.Write(p)
}

// Middleware intercepts mutating requests bearing an Idempotency-Key.
// A known key is answered from the cache without reaching the handler;
// otherwise the handler runs and a 2xx result is stored under the key.
func (c *Cache) Middleware() gin.HandlerFunc {
	return func(g *gin.Context) {
		key := g.GetHeader(HeaderKey)
		if key == "" || (g.Request.Method != "POST" && g.Request.Method != "PUT" && g.Request.Method != "DELETE") {
			g.Next()
			return
		}
		// Scope the key to the route so one client key cannot bleed
		// across endpoints.
		scoped := g.Request.Method + " " + g.Request.URL.Path + " " + key

		if rec, err := c.get(scoped); err == nil && rec != nil {
			g.Header("Idempotent-Replay", "true")
			g.Data(rec.Status, rec.ContentType, rec.Body)
			g.Abort()
			return
		}

		cw := &bodyCapture{ResponseWriter: g.Writer}
		g.Writer = cw
		g.Next()

		status := cw.Status()
		if status >= 200 && status < 300 {
			_ = c.put(scoped, &record{
				Status:      status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.buf.Bytes(),
				StoredAt:    time.Now(),
			})
		}
	}
}
