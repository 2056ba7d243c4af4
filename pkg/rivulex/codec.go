package rivulex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Wire field names. XADD values are submitted as an ordered pair list so
// the on-wire record keeps the action/payload/headers field order.
const (
	fieldAction  = "action"
	fieldPayload = "payload"
	fieldHeaders = "headers"
	fieldAttempt = "attempt"
)

// encodeFields serialises an event for XADD. The payload is marshalled
// to JSON; headers are augmented with the creation timestamp and the
// publisher's group.
func encodeFields(action string, payload any, headers Headers, group string, now time.Time) ([]any, Headers, error) {
	if headers == nil {
		headers = Headers{}
	}
	h := headers.clone()
	h[HeaderTimestamp] = now.UTC().Format(time.RFC3339)
	h[HeaderGroup] = group

	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal headers: %w", err)
	}

	return []any{
		fieldAction, action,
		fieldPayload, string(pb),
		fieldHeaders, string(hb),
	}, h, nil
}

// encodedEventFields re-serialises an already-decoded event, used when
// appending a rejected copy to the dead-letter stream.
func encodedEventFields(ev *Event, headers Headers) ([]any, error) {
	hb, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}
	return []any{
		fieldAction, ev.Action,
		fieldPayload, string(ev.Payload),
		fieldHeaders, string(hb),
	}, nil
}

// decodeEvent parses a raw record into an Event. Records carry either
// three field pairs or, on claim responses, an extra attempt pair; a
// missing attempt defaults to 0. Malformed records yield a DecodeError
// and are left unacknowledged.
func decodeEvent(stream, id string, values map[string]any) (*Event, error) {
	action, err := stringField(values, fieldAction)
	if err != nil {
		return nil, &DecodeError{Stream: stream, ID: id, Err: err}
	}
	payload, err := stringField(values, fieldPayload)
	if err != nil {
		return nil, &DecodeError{Stream: stream, ID: id, Err: err}
	}
	rawHeaders, err := stringField(values, fieldHeaders)
	if err != nil {
		return nil, &DecodeError{Stream: stream, ID: id, Err: err}
	}

	var headers Headers
	if err := json.Unmarshal([]byte(rawHeaders), &headers); err != nil {
		return nil, &DecodeError{Stream: stream, ID: id, Err: fmt.Errorf("parse headers: %w", err)}
	}
	if !json.Valid([]byte(payload)) {
		return nil, &DecodeError{Stream: stream, ID: id, Err: fmt.Errorf("payload is not valid JSON")}
	}

	ev := &Event{
		ID:      id,
		Stream:  stream,
		Action:  action,
		Headers: headers,
		Payload: json.RawMessage(payload),
	}

	if raw, ok := values[fieldAttempt]; ok {
		switch v := raw.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, &DecodeError{Stream: stream, ID: id, Err: fmt.Errorf("parse attempt: %w", err)}
			}
			ev.Attempt = n
		case int64:
			ev.Attempt = v
		}
	}

	return ev, nil
}

func stringField(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}
