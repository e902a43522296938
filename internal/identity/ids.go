package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kinds of generated identifiers.
const (
	KindLot   = "lot"
	KindPlant = "plant"
	KindEvent = "event"
	KindQR    = "qr"
)

// NewID returns a random 128-bit identifier. Identifiers are unique across
// kinds; kind names the call site.
func NewID(kind string) string {
	return uuid.NewString()
}

// NewPlantTag returns an external plant tag such as PLT-20250301-1A2B3C4D.
func NewPlantTag(ts time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("PLT-%s-%s", ts.UTC().Format("20060102"), strings.ToUpper(suffix))
}

// IsValidID reports whether id parses as a UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
