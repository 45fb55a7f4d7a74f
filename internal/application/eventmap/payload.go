package eventmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-notification-service/internal/domain"
)

// Payload is the loosely typed body of an inbound event. Numbers decode as json.Number
// so identifiers keep their textual form.
type Payload map[string]any

// Decode parses an event body. Deletion events publish a bare identifier, which is
// normalised to {"id": v}.
func Decode(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode payload: %v: %w", err, domain.ErrBadRequest)
	}
	switch v := raw.(type) {
	case map[string]any:
		return Payload(v), nil
	case json.Number, string:
		return Payload{"id": v}, nil
	default:
		return nil, fmt.Errorf("decode payload: unsupported %T body: %w", raw, domain.ErrBadRequest)
	}
}

// Text returns the field rendered as text, or fallback when the key is missing or null.
func (p Payload) Text(key, fallback string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return fallback
		}
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Has reports whether key is present with a non-null value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// RecipientID returns the userId carried by booking events.
func (p Payload) RecipientID() (string, bool) {
	if !p.Has("userId") {
		return "", false
	}
	id := p.Text("userId", "")
	return id, id != ""
}
