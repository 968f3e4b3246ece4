package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Entry is an immutable cached lookup result.
type Entry struct {
	Key      string        `json:"key"`
	Payload  *Payload      `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

// Fresh reports whether the entry may be served at now.
func (x *Entry) Fresh(now time.Time) bool {
	return now.Sub(x.StoredAt) < x.TTL
}

// Cache stores entries by key. Get returns (nil, nil) on a miss. Put
// replaces any existing entry for the key.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
}

// Key returns the content address of a lookup.
func Key(source, endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(source)
	b.WriteByte('|')
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
