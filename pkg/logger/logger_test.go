package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestErrorCarriesScopedFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "DRIPLO-1-abcdef")
	ctx = log.WithPaymentIntentID(ctx, "pi_123")

	log.Error(ctx, "payment.confirm_failed", errors.New("card declined"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "DRIPLO-1-abcdef", entry["order_id"])
	assert.Equal(t, "pi_123", entry["payment_intent_id"])
	assert.Equal(t, "card declined", entry["error"])
	assert.Contains(t, entry, "stack")
}

func TestScopedFieldsDoNotLeakToParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})

	parent := log.WithUserID(context.Background(), "u-1")
	_ = log.WithField(parent, "conversation_id", "c-1")

	log.Info(parent, "conversation.listed")
	entry := decodeLine(t, buf)
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "conversation_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "rate_limit.blocked")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{Output: buf}).Warn(context.Background(), "rate_limit.blocked")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, Format: "console"}).Info(context.Background(), "cron.started")
	assert.True(t, strings.Contains(buf.String(), "cron.started"))
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
