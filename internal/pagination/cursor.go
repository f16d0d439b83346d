package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Cursor is a decoded keyset position: the last row seen and its creation time.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult is one page of items. Total is only set by sources that can
// count cheaply.
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Total   int    `json:"total"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100

	offsetPrefix = "row:"
	keysetSep    = "|"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor builds a URL-safe keyset cursor for rows ordered by
// (created_at, id).
func EncodeCursor(lastID string, createdAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := createdAt.UTC().Format(time.RFC3339Nano) + keysetSep + lastID
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor is the inverse of EncodeCursor. An empty cursor decodes to nil,
// meaning the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), keysetSep)
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{LastID: id, Timestamp: createdAt}, nil
}

// EncodeOffsetCursor creates a URL-safe cursor pointing at a row offset of
// an append-only sequence.
func EncodeOffsetCursor(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(offsetPrefix + strconv.Itoa(offset)))
}

// DecodeOffsetCursor returns the row offset a cursor points at; an empty
// cursor is offset 0.
func DecodeOffsetCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}

	raw, ok := strings.CutPrefix(string(decoded), offsetPrefix)
	if !ok {
		return 0, ErrInvalidCursor
	}

	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, ErrInvalidCursor
	}
	return offset, nil
}

// ClampLimit applies DefaultLimit to non-positive values and caps at MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
