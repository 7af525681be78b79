package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeNotification             = "Notification"
	TypeSubscriptionConfirmation = "SubscriptionConfirmation"
	TypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

const (
	FieldMessage        = "Message"
	FieldMessageID      = "MessageId"
	FieldSignature      = "Signature"
	FieldSigningCertURL = "SigningCertURL"
	FieldSubscribeURL   = "SubscribeURL"
	FieldTimestamp      = "Timestamp"
	FieldToken          = "Token"
	FieldTopicARN       = "TopicArn"
	FieldType           = "Type"
)

// Payload is the parsed SNS envelope: a flat mapping from field name to the
// literal string value AWS sent. It arrives from an untrusted source; every
// consumer must treat absent fields as a hard failure rather than default
// them.
type Payload map[string]string

func (p Payload) Type() string {
	return strings.TrimSpace(p[FieldType])
}

func (p Payload) MessageID() string {
	return strings.TrimSpace(p[FieldMessageID])
}

func (p Payload) TopicARN() string {
	return strings.TrimSpace(p[FieldTopicARN])
}

// Field returns the literal value for name. The boolean reports presence, so
// an empty-but-present value stays distinguishable from an absent one.
func (p Payload) Field(name string) (string, bool) {
	value, ok := p[name]
	return value, ok
}

// IsConfirmation reports whether the payload asks for a subscription state
// change (subscribe or unsubscribe) rather than delivering a notification.
func (p Payload) IsConfirmation() bool {
	switch p.Type() {
	case TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		return true
	}
	return false
}

func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	cloned := make(Payload, len(p))
	for key, value := range p {
		cloned[key] = value
	}
	return cloned
}

// KnownType reports whether t is one of the three SNS envelope types this
// module processes.
func KnownType(t string) bool {
	switch strings.TrimSpace(t) {
	case TypeNotification, TypeSubscriptionConfirmation, TypeUnsubscribeConfirmation:
		return true
	}
	return false
}

// ParsePayload decodes a raw SNS POST body into a Payload. Non-string values
// (for example MessageAttributes) are dropped: signature verification only
// ever covers the string envelope fields.
func ParsePayload(body []byte) (Payload, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("core: sns envelope body is empty")
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("core: parse sns envelope: %w", err)
	}
	payload := make(Payload, len(raw))
	for key, value := range raw {
		if text, ok := value.(string); ok {
			payload[key] = text
		}
	}
	if !KnownType(payload.Type()) {
		return nil, fmt.Errorf("core: unsupported sns envelope type %q", payload.Type())
	}
	return payload, nil
}
