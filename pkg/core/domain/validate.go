package domain

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength = 200
	MaxURLLength   = 2048
)

// ValidateDestinationURL accepts absolute http(s) URLs with a host.
// Reachability and safety are not checked.
func ValidateDestinationURL(s string) error {
	if s == "" || len(s) > MaxURLLength {
		return NewValidationError("destination_url", ErrInvalidURL)
	}

	u, err := url.ParseRequestURI(s)
	if err != nil {
		return NewValidationError("destination_url", ErrInvalidURL)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("destination_url", ErrInvalidURL)
	}

	if u.Host == "" {
		return NewValidationError("destination_url", ErrInvalidURL)
	}

	return nil
}

func ValidateTitle(s string) error {
	if strings.TrimSpace(s) == "" || utf8.RuneCountInString(s) > MaxTitleLength {
		return NewValidationError("title", ErrInvalidTitle)
	}

	return nil
}
