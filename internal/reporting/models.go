package reporting

import (
	"time"

	"seedtrace/internal/ledger"
	"seedtrace/internal/lifecycle"
	"seedtrace/pkg/domain"
)

// LotPage is one page of a lot search. Page numbers start at 1.
type LotPage struct {
	Items    []*lifecycle.Lot `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Pages    int              `json:"pages"`
}

// TrackingHistory is a subject's ordered timeline with its derived metrics.
type TrackingHistory struct {
	SubjectID       string          `json:"subject_id"`
	SubjectKind     string          `json:"subject_kind"`
	TotalEvents     int             `json:"total_events"`
	TotalDistanceKm float64         `json:"total_distance_km"`
	Timeline        []*ledger.Event `json:"timeline"`
	Metrics         ledger.Metrics  `json:"metrics"`
}

// System status values reported in summaries.
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
)

// Summary is the system-wide report.
type Summary struct {
	TotalLots              int                           `json:"total_lots"`
	TotalPlants            int                           `json:"total_plants"`
	PlantsByStage          map[domain.LifecycleStage]int `json:"plants_by_stage"`
	TotalEvents            int                           `json:"total_events"`
	TotalQRCodes           int                           `json:"total_qr_codes"`
	AverageComplianceScore float64                       `json:"average_compliance_score"`
	CompliantLots          int                           `json:"compliant_lots"`
	AuditRecords           int                           `json:"audit_records"`
	AuditTrailIntegrity    float64                       `json:"audit_trail_integrity"`
	AuditBrokenAtID        int64                         `json:"audit_broken_at_id,omitempty"`
	AverageResponseTimeMs  float64                       `json:"average_response_time_ms"`
	SystemStatus           string                        `json:"system_status"`
	GeneratedAt            time.Time                     `json:"generated_at"`
}
