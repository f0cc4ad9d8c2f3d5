package usecase

import "fmt"

// DomainError: problem with the data or configuration itself (bad spreadsheet id,
// tenant missing). Affected location is skipped; the cycle goes on.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func IsDomainError(err error) bool {
	_, ok := err.(*DomainError)
	return ok
}

// TechnicalError: infrastructure failure (network, storage). Transient ones are
// retried naturally; storage-subsystem ones terminate the daemon.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func NewTechnicalError(code, message string, err error) *TechnicalError {
	return &TechnicalError{Code: code, Message: message, Err: err}
}

func IsTechnicalError(err error) bool {
	_, ok := err.(*TechnicalError)
	return ok
}
