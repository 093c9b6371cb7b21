package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := NewRequestIDHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slog.New(handler), &buf
}

func TestNewRequestIDFormat(t *testing.T) {
	id := NewRequestID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, NewRequestID())
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abcd1234")

	id, ok := RequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "abcd1234", id)

	_, ok = RequestID(context.Background())
	assert.False(t, ok)
}

func TestHandlerInjectsRequestID(t *testing.T) {
	logger, buf := newBufferLogger()

	ctx := WithRequestID(context.Background(), "abcd1234")
	logger.InfoContext(ctx, "handling request")

	assert.Contains(t, buf.String(), "request_id=abcd1234")
}

func TestHandlerWithoutRequestID(t *testing.T) {
	logger, buf := newBufferLogger()

	logger.InfoContext(context.Background(), "no request context")

	assert.NotContains(t, buf.String(), "request_id")
}

func TestHandlerPreservesAttrsAndGroups(t *testing.T) {
	logger, buf := newBufferLogger()

	ctx := WithRequestID(context.Background(), "abcd1234")
	logger.With("component", "store").WithGroup("req").InfoContext(ctx, "grouped", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "component=store")
	assert.Contains(t, output, "request_id=abcd1234")
}
