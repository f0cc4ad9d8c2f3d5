package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

var nonDigits = regexp.MustCompile(`\D`)

// LeadHash is the deduplication identity: a stable digest over the normalized
// core fields. Column order and unrelated columns never change it; editing
// email, first name, last name or phone does.
func LeadHash(lead entity.LeadEntry) string {
	parts := []string{
		normalize(lead.Email),
		normalize(lead.FirstName),
		normalize(lead.LastName),
		nonDigits.ReplaceAllString(lead.Phone, ""),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
