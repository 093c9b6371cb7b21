package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWithPayload(t *testing.T) {
	data, err := Encode(TypeEditingStatus, EditingStatusPayload{ArticleID: 7})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, TypeEditingStatus, env.Type)
	assert.NotEmpty(t, env.Payload)
}

func TestEncodeNilPayloadOmitsField(t *testing.T) {
	data, err := Encode(TypePong, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestEncodeUnmarshalablePayload(t *testing.T) {
	_, err := Encode(TypeEditingStatus, func() {})
	assert.Error(t, err)
}
