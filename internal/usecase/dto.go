package usecase

import (
	"strings"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

// Column aliases seen across the lead sheets. Matching is case-insensitive.
var (
	emailColumns     = []string{"email", "email address"}
	firstNameColumns = []string{"first name", "firstname", "first"}
	lastNameColumns  = []string{"last name", "lastname", "last"}
	phoneColumns     = []string{"phone", "phone number", "mobile"}
	zipColumns       = []string{"zip", "zip code", "zipcode", "postal code"}
	discoveryColumns = []string{"how did you hear about us", "how did you hear", "discovery", "source"}
)

// LeadFromRow extracts the fixed lead columns out of a raw sheet row.
func LeadFromRow(row entity.RawRow, loc *entity.Location) entity.LeadEntry {
	return entity.LeadEntry{
		Email:           pickColumn(row, emailColumns),
		FirstName:       pickColumn(row, firstNameColumns),
		LastName:        pickColumn(row, lastNameColumns),
		Phone:           pickColumn(row, phoneColumns),
		ZipCode:         pickColumn(row, zipColumns),
		DiscoveryAnswer: pickColumn(row, discoveryColumns),
		LocationID:      loc.ID,
		SourceID:        loc.SourceID,
		Raw:             row,
	}
}

func pickColumn(row entity.RawRow, names []string) string {
	for key, value := range row {
		k := strings.ToLower(strings.TrimSpace(key))
		for _, name := range names {
			if k == name {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// CycleStats aggregates one loop iteration for logging and the status API.
// Not persisted beyond log output.
type CycleStats struct {
	Fetched        int `json:"fetched"`
	Sent           int `json:"sent"`
	Duplicates     int `json:"duplicates"`
	Rejected       int `json:"rejected"` // permanently invalid payloads
	Queued         int `json:"queued"`
	WouldSend      int `json:"would_send"` // dry-run only
	Resolved       int `json:"resolved"`
	Rescheduled    int `json:"rescheduled"`
	Dead           int `json:"dead"`
	SkippedClosed  int `json:"skipped_closed"`
	FetchErrors    int `json:"fetch_errors"`
	LocationErrors int `json:"location_errors"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
