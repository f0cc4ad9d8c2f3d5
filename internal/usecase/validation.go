package usecase

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateLeadEntry checks whether the payload can ever be accepted by the CRM.
// A non-empty result is a permanent failure: log it, never queue it.
func ValidateLeadEntry(lead entity.LeadEntry) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(lead.Email) == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if _, err := mail.ParseAddress(lead.Email); err != nil {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	if strings.TrimSpace(lead.FirstName) == "" {
		errors = append(errors, ValidationError{"first_name", "is required"})
	} else if len(lead.FirstName) > 100 {
		errors = append(errors, ValidationError{"first_name", "must not exceed 100 characters"})
	}

	if lead.Phone != "" && !isValidPhoneNumber(lead.Phone) {
		errors = append(errors, ValidationError{"phone", "must be a valid phone number"})
	}

	if lead.ZipCode != "" && !isValidZipCode(lead.ZipCode) {
		errors = append(errors, ValidationError{"zip_code", "must be a 5 digit zip code"})
	}

	return errors
}

func isValidPhoneNumber(phone string) bool {
	cleaned := regexp.MustCompile(`\D`).ReplaceAllString(phone, "")

	return len(cleaned) >= 10 && len(cleaned) <= 11
}

func isValidZipCode(zipcode string) bool {
	cleaned := regexp.MustCompile(`\D`).ReplaceAllString(zipcode, "")
	return len(cleaned) == 5
}
