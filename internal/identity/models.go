package identity

import "time"

// QRPayload is the content encoded into a QR image.
type QRPayload struct {
	QRID       string            `json:"qr_id"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	LotNumber  string            `json:"lot_number,omitempty"`
	VerifyURL  string            `json:"verify_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IssuedAt   time.Time         `json:"issued_at"`
}

// QRIdentity is a persisted QR issuance. PayloadHash is the hex SHA-256 of
// the canonical payload JSON and is checked on every verification.
type QRIdentity struct {
	ID          string    `json:"id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Payload     QRPayload `json:"payload"`
	PayloadHash string    `json:"payload_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// VerifyResult reports whether a QR id resolves to an intact issuance.
type VerifyResult struct {
	Valid  bool       `json:"valid"`
	Reason string     `json:"reason,omitempty"`
	Data   *QRPayload `json:"data,omitempty"`
}
