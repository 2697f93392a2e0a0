package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusSent is the only status a Result carries.
const StatusSent = "sent"

// Result describes a successful delivery.
type Result struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
}

// NewResult builds a sent Result for provider at now.
// The ID has the form <provider>_<unix millis>_<random suffix>, with the
// provider name lowercased.
func NewResult(provider string, now time.Time) Result {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return Result{
		ID:        fmt.Sprintf("%s_%d_%s", strings.ToLower(provider), now.UnixMilli(), suffix),
		Status:    StatusSent,
		Timestamp: now.UTC(),
		Provider:  provider,
	}
}
