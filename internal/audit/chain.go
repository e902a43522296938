package audit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"seedtrace/pkg/jsonutil"
)

// signedPayload is the canonical body covered by a record's signature.
// ActorRole and the chain fields are deliberately outside it.
type signedPayload struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Operation  Operation       `json:"operation"`
	ActorID    string          `json:"actorId"`
	Timestamp  string          `json:"timestamp"`
	OldValue   json.RawMessage `json:"oldValue"`
	NewValue   json.RawMessage `json:"newValue"`
}

// formatTimestamp renders timestamps the same way at append and verify time.
// Stores keep microsecond precision, so callers truncate before signing.
func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func rawOrNull(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return json.RawMessage("null")
	}
	return v
}

// canonicalPayload serializes the signed fields of r deterministically.
func canonicalPayload(r *Record) ([]byte, error) {
	body, err := jsonutil.CanonicalMarshal(signedPayload{
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Operation:  r.Operation,
		ActorID:    r.ActorID,
		Timestamp:  formatTimestamp(r.Timestamp),
		OldValue:   rawOrNull(r.OldValue),
		NewValue:   rawOrNull(r.NewValue),
	})
	if err != nil {
		return nil, fmt.Errorf("canonical audit payload: %w", err)
	}
	return body, nil
}

// Sign returns base64(canonical payload + secret + timestamp). It is a
// reversible encoding, not a MAC.
func Sign(r *Record, secret string) (string, error) {
	body, err := canonicalPayload(r)
	if err != nil {
		return "", err
	}
	material := make([]byte, 0, len(body)+len(secret)+32)
	material = append(material, body...)
	material = append(material, secret...)
	material = append(material, formatTimestamp(r.Timestamp)...)
	return base64.StdEncoding.EncodeToString(material), nil
}

// SimpleHash is a 32-bit rolling hash (h = h*31 + b) rendered as 8 hex
// digits. It is fast and deterministic; it does not resist collisions.
func SimpleHash(s string) string {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return fmt.Sprintf("%08x", h)
}

// ChainHash links a record to its predecessor. prevSignature is empty for
// the first record of the log.
func ChainHash(prevSignature, signature string) string {
	return SimpleHash(prevSignature + signature)
}
