// Package store persists serialized documents. Only the HTML string is
// kept; the node form is rebuilt by deserializing on read.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// ErrNotFound is returned by Get when no record exists at the key.
var ErrNotFound = errors.New("document not found")

// Record is one stored document.
type Record struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is implemented by every storage backend.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, key string) (*Record, error)
	Delete(ctx context.Context, key string) error
	// List returns records under prefix (keys starting with prefix+"/"),
	// ordered by key.
	// limit <= 0 means no limit.
	List(ctx context.Context, prefix string, limit int) ([]Record, error)
	Close() error
}

// DocumentKey builds the key for a user's document.
func DocumentKey(userID, docID string) string {
	return "users/" + userID + "/documents/" + docID
}

// UserPrefix is the key prefix for all of a user's documents.
func UserPrefix(userID string) string {
	return "users/" + userID + "/documents"
}

// ContentHash is the hex BLAKE3 digest of a serialized document.
func ContentHash(html string) string {
	sum := blake3.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// ValidateID rejects IDs that would escape their key segment.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if strings.ContainsAny(id, "/*?#") || id == "." || id == ".." {
		return fmt.Errorf("invalid %s %q", kind, id)
	}
	return nil
}

// normalize fills derived fields before a write.
func normalize(rec *Record) {
	if rec.ContentHash == "" {
		rec.ContentHash = ContentHash(rec.HTML)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
}
