package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 5: 5, MaxLimit: MaxLimit, 500: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, Params{Limit: in}.PageSize(), in)
	}
}

func TestCursorEncodeDecode(t *testing.T) {
	want := Cursor{SortAt: time.Date(2026, 1, 5, 9, 30, 0, 123, time.UTC), ID: uuid.New()}
	got, err := Params{Cursor: want.Encode()}.Decode()
	require.NoError(t, err)
	assert.True(t, got.SortAt.Equal(want.SortAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c, err := Params{Cursor: "  "}.Decode()
	require.NoError(t, err)
	assert.Nil(t, c)

	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	for _, bad := range []string{"!!!", enc("no-json"), enc(`{"t":0,"id":"` + uuid.NewString() + `"}`), enc(`{"t":5}`)} {
		_, err := Params{Cursor: bad}.Decode()
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{SortAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	key := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 3, key)
	assert.Len(t, page, 3)
	decoded, err := Params{Cursor: next}.Decode()
	require.NoError(t, err)
	assert.Equal(t, rows[2].ID, decoded.ID)

	page, next = Trim(rows[:2], 3, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
