package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// PushDelivery is the transport wrapper the bus hands to a stage endpoint: a
// base64-encoded JSON envelope plus the bus-assigned delivery identifier.
type PushDelivery struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

type PushMessage struct {
	Data      string `json:"data"`
	MessageID string `json:"message_id"`
}

// DecodePush unwraps a push delivery into an Envelope and the delivery id.
// Any decoding or validation failure is a MalformedEnvelope: it is reported by
// the receiving adapter and never enters the pipeline.
func DecodePush(body []byte) (Envelope, string, error) {
	var delivery PushDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return Envelope{}, "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if delivery.Message.Data == "" {
		return Envelope{}, "", fmt.Errorf("%w: empty message data", ErrMalformedEnvelope)
	}
	raw, err := base64.StdEncoding.DecodeString(delivery.Message.Data)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	env, err := DecodeEnvelope([]byte(strings.TrimSpace(string(raw))))
	if err != nil {
		return Envelope{}, "", err
	}
	return env, delivery.Message.MessageID, nil
}

// DecodePushBestEffort extracts whatever envelope fields are present without
// validating them. The fault sink uses it: a fault may have been raised before
// the envelope was fully formed, and the sink salvages what it can.
func DecodePushBestEffort(body []byte) (Envelope, string) {
	var delivery PushDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return Envelope{}, ""
	}
	raw, err := base64.StdEncoding.DecodeString(delivery.Message.Data)
	if err != nil {
		return Envelope{}, delivery.Message.MessageID
	}
	var env Envelope
	_ = json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &env)
	return env, delivery.Message.MessageID
}

// DecodeEnvelope parses and validates a bare JSON envelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Encode serializes the envelope deterministically: struct fields in declared
// order, map keys sorted by encoding/json. Equal envelopes always produce
// identical bytes, so delivery hashing is reproducible.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// EncodePush wraps an envelope the way the bus delivers it, for local and
// test transports that bypass a real broker.
func EncodePush(e Envelope, messageID string) ([]byte, error) {
	raw, err := e.Encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(PushDelivery{
		Message: PushMessage{
			Data:      base64.StdEncoding.EncodeToString(raw),
			MessageID: messageID,
		},
	})
}
