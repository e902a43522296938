package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"seedtrace/internal/identity/metrics"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/jsonutil"
	"seedtrace/pkg/platform/sentinel"
	"seedtrace/pkg/requestcontext"
)

// Store persists QR identities.
type Store interface {
	Save(ctx context.Context, qr *QRIdentity) error
	FindByID(ctx context.Context, id string) (*QRIdentity, error)
	Count(ctx context.Context) (int, error)
}

const (
	defaultRenderSize = 256
	minRenderSize     = 64
	maxRenderSize     = 1024
)

// Service issues and verifies QR identities.
type Service struct {
	store   Store
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService builds a QR service whose verification links start with
// baseURL, e.g. https://trace.example.org.
func NewService(store Store, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encode issues and persists a QR identity for an entity.
func (s *Service) Encode(ctx context.Context, entityType, entityID, lotNumber string, metadata map[string]string) (*QRIdentity, error) {
	if entityType == "" || entityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "qr identity requires entity type and id")
	}
	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	id := NewID(KindQR)
	payload := QRPayload{
		QRID:       id,
		EntityType: entityType,
		EntityID:   entityID,
		LotNumber:  lotNumber,
		VerifyURL:  s.VerifyURL(id),
		Metadata:   maps.Clone(metadata),
		IssuedAt:   now,
	}
	hash, err := PayloadHash(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode qr payload")
	}
	qr := &QRIdentity{
		ID:          id,
		EntityType:  entityType,
		EntityID:    entityID,
		Payload:     payload,
		PayloadHash: hash,
		CreatedAt:   now,
	}
	if err := s.store.Save(ctx, qr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store qr identity")
	}
	s.metrics.IncrementIssued(entityType)
	return qr, nil
}

// VerifyURL is the public link printed into a QR payload.
func (s *Service) VerifyURL(qrID string) string {
	return s.baseURL + "/qr/" + qrID + "/verify"
}

// Render returns a PNG of the stored payload. size is the image edge in
// pixels; zero picks the default.
func (s *Service) Render(ctx context.Context, qrID string, size int) ([]byte, error) {
	if size == 0 {
		size = defaultRenderSize
	}
	if size < minRenderSize || size > maxRenderSize {
		return nil, dErrors.New(dErrors.CodeValidation, "qr size must be between 64 and 1024 pixels")
	}
	qr, err := s.Get(ctx, qrID)
	if err != nil {
		return nil, err
	}
	content, err := jsonutil.CanonicalMarshal(qr.Payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode qr payload")
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render qr image")
	}
	s.metrics.ObserveRenderSize(len(png))
	return png, nil
}

// Get returns the stored identity or a not_found error.
func (s *Service) Get(ctx context.Context, qrID string) (*QRIdentity, error) {
	qr, err := s.store.FindByID(ctx, qrID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "qr code not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load qr identity")
	}
	return qr, nil
}

// Verify resolves a QR id. Unknown ids and payloads that no longer match
// their hash are reported as invalid; only storage failures return an error.
func (s *Service) Verify(ctx context.Context, qrID string) (*VerifyResult, error) {
	qr, err := s.store.FindByID(ctx, qrID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncrementVerified("unknown")
		return &VerifyResult{Valid: false, Reason: "unknown qr id"}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load qr identity")
	}

	hash, err := PayloadHash(qr.Payload)
	switch {
	case err != nil, hash != qr.PayloadHash:
		s.metrics.IncrementVerified("tampered")
		s.logger.WarnContext(ctx, "qr payload hash mismatch", "qr_id", qrID)
		return &VerifyResult{Valid: false, Reason: "payload hash mismatch"}, nil
	case qr.Payload.EntityType != qr.EntityType || qr.Payload.EntityID != qr.EntityID || qr.Payload.QRID != qr.ID:
		s.metrics.IncrementVerified("tampered")
		s.logger.WarnContext(ctx, "qr payload does not match its identity", "qr_id", qrID)
		return &VerifyResult{Valid: false, Reason: "payload does not match issued entity"}, nil
	}

	s.metrics.IncrementVerified("valid")
	payload := qr.Payload
	return &VerifyResult{Valid: true, Data: &payload}, nil
}

// Count returns the number of issued QR identities.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count qr identities")
	}
	return n, nil
}

// PayloadHash is the hex SHA-256 of the canonical JSON of p.
func PayloadHash(p QRPayload) (string, error) {
	body, err := jsonutil.CanonicalMarshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// DecodePayload parses the text scanned from a QR image.
func DecodePayload(content []byte) (*QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal(content, &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "qr content is not a seedtrace payload")
	}
	if p.QRID == "" || p.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "qr content is missing identifiers")
	}
	return &p, nil
}
