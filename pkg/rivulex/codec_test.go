package rivulex

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitCodec_EncodePreservesFieldOrder(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	fields, _, err := encodeFields("u_created", map[string]string{"id": "1"}, nil, "billing", now)
	require.NoError(t, err)

	require.Len(t, fields, 6)
	assert.Equal(t, fieldAction, fields[0])
	assert.Equal(t, "u_created", fields[1])
	assert.Equal(t, fieldPayload, fields[2])
	assert.Equal(t, fieldHeaders, fields[4])
}

func TestUnitCodec_EncodeInjectsTimestampAndGroup(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, headers, err := encodeFields("u_created", nil, Headers{"region": "eu"}, "billing", now)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01T12:00:00Z", headers.Timestamp())
	assert.Equal(t, "billing", headers.Group())
	assert.Equal(t, "eu", headers["region"])
}

func TestUnitCodec_EncodeDoesNotMutateCallerHeaders(t *testing.T) {
	user := Headers{"region": "eu"}

	_, _, err := encodeFields("u_created", nil, user, "billing", time.Now())
	require.NoError(t, err)

	_, ok := user[HeaderTimestamp]
	assert.False(t, ok, "caller's headers must stay untouched")
}

func TestUnitCodec_RoundTrip(t *testing.T) {
	now := time.Now()
	fields, _, err := encodeFields("u_created", map[string]string{"id": "1"}, Headers{"k": "v"}, "billing", now)
	require.NoError(t, err)

	values := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		values[fields[i].(string)] = fields[i+1]
	}

	ev, err := decodeEvent("users", "1-0", values)
	require.NoError(t, err)

	assert.Equal(t, "u_created", ev.Action)
	assert.Equal(t, "users", ev.Stream)
	assert.Equal(t, "1-0", ev.ID)
	assert.Equal(t, int64(0), ev.Attempt)
	assert.Equal(t, "v", ev.Headers["k"])
	assert.Equal(t, "billing", ev.Headers.Group())
	assert.JSONEq(t, `{"id":"1"}`, string(ev.Payload))
}

func TestUnitCodec_DecodeMissingAttemptDefaultsToZero(t *testing.T) {
	ev, err := decodeEvent("users", "1-0", map[string]any{
		"action":  "a",
		"payload": "{}",
		"headers": "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ev.Attempt)
}

func TestUnitCodec_DecodeParsesAttempt(t *testing.T) {
	ev, err := decodeEvent("users", "1-0", map[string]any{
		"action":  "a",
		"payload": "{}",
		"headers": "{}",
		"attempt": "4",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Attempt)
}

func TestUnitCodec_DecodeMalformedHeadersIsDecodeError(t *testing.T) {
	_, err := decodeEvent("users", "1-0", map[string]any{
		"action":  "a",
		"payload": "{}",
		"headers": "{not json",
	})

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, "1-0", decErr.ID)
	assert.Equal(t, "users", decErr.Stream)
}

func TestUnitCodec_DecodeMissingFieldIsDecodeError(t *testing.T) {
	_, err := decodeEvent("users", "1-0", map[string]any{
		"action": "a",
	})

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
}

func TestUnitCodec_DecodeInvalidPayloadIsDecodeError(t *testing.T) {
	_, err := decodeEvent("users", "1-0", map[string]any{
		"action":  "a",
		"payload": "{broken",
		"headers": "{}",
	})

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
}

func TestUnitCodec_RejectionHeadersSurvive(t *testing.T) {
	hb, err := json.Marshal(Headers{
		HeaderRejected:      true,
		HeaderRejectedGroup: "billing",
		"k":                 "v",
	})
	require.NoError(t, err)

	ev, err := decodeEvent("dead_letter", "1-0", map[string]any{
		"action":  "a",
		"payload": "{}",
		"headers": string(hb),
	})
	require.NoError(t, err)

	assert.True(t, ev.Headers.Rejected())
	assert.Equal(t, "billing", ev.Headers.RejectedGroup())
	assert.Equal(t, "v", ev.Headers["k"])
}
