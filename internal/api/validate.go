package api

import (
	"net/mail"
	"net/url"
	"strings"
	"time"
)

const minPasswordLength = 6

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validFileURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func validateSignup(email, password string) []fieldError {
	var errs []fieldError
	if !validEmail(email) {
		errs = append(errs, fieldError{Field: "email", Message: "valid email required"})
	}
	if len(password) < minPasswordLength {
		errs = append(errs, fieldError{Field: "password", Message: "password must be at least 6 characters"})
	}
	return errs
}

func validateLogin(email, password string) []fieldError {
	var errs []fieldError
	if !validEmail(email) {
		errs = append(errs, fieldError{Field: "email", Message: "valid email required"})
	}
	if password == "" {
		errs = append(errs, fieldError{Field: "password", Message: "password required"})
	}
	return errs
}

const dateLayout = "2006-01-02"

// parseDayBound parses an optional YYYY-MM-DD query value into the inclusive
// instant bounding that UTC day. Start-of-day for the from side, end-of-day
// for the to side.
func parseDayBound(raw string, endOfDay bool) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, true
}
