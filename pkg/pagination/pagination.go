// Package pagination implements keyset paging over rows ordered by (sort_at DESC, id DESC).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 20
)

var ErrInvalidCursor = errors.New("invalid cursor")

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (sort_at, id) of the last row on the previous page.
type Cursor struct {
	SortAt time.Time
	ID     uuid.UUID
}

type wireCursor struct {
	T  int64     `json:"t"`
	ID uuid.UUID `json:"id"`
}

// PageSize clamps the requested page size into [1, MaxLimit].
func (p Params) PageSize() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	}
	return p.Limit
}

// Decode returns nil for the first page.
func (p Params) Decode() (*Cursor, error) {
	raw := strings.TrimSpace(p.Cursor)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var w wireCursor
	if err := json.Unmarshal(b, &w); err != nil || w.ID == uuid.Nil || w.T <= 0 {
		return nil, ErrInvalidCursor
	}
	return &Cursor{SortAt: time.Unix(0, w.T).UTC(), ID: w.ID}, nil
}

func (c Cursor) Encode() string {
	b, _ := json.Marshal(wireCursor{T: c.SortAt.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

// Trim cuts rows fetched with limit+1 down to limit. When a row was cut, next is the
// cursor of the last kept row.
func Trim[T any](rows []T, limit int, key func(T) Cursor) (page []T, next string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	page = rows[:limit]
	return page, key(page[limit-1]).Encode()
}
