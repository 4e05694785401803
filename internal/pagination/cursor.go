// Package pagination implements opaque keyset cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Cursor marks a position in a (updated_at, id) ordered result set.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// EncodeCursor packs the position into an opaque base64 token.
func EncodeCursor(id string, ts time.Time) string {
	raw := fmt.Sprintf("%s|%s", id, ts.UTC().Format(time.RFC3339Nano))
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page and yields a nil cursor without error.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return &Cursor{LastID: parts[0], Timestamp: ts}, nil
}
