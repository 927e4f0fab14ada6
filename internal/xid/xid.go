// Package xid generates prefixed identifiers for persisted entities.
// IDs are not sortable or sequential; the prefix exists so a bare id
// in a log line still says what kind of record it names.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form "<prefix>-<unixnano>-<8 random bytes hex>".
// An empty prefix falls back to "id" rather than producing a leading dash.
func New(prefix string) string {
	if prefix == "" {
		prefix = "id"
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Timestamp-only ids are good enough to keep serving when the
		// entropy source fails.
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
