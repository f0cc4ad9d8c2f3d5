package entity

// RawRow is one sheet row keyed by header name, exactly as fetched.
type RawRow map[string]string

type LeadEntry struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone,omitempty"`
	ZipCode         string `json:"zip_code,omitempty"`
	DiscoveryAnswer string `json:"discovery_answer,omitempty"`
	LocationID      string `json:"location_id"`
	SourceID        string `json:"source_id"` // lead-source identifier sent to the CRM
	Raw             RawRow `json:"raw,omitempty"`
}
