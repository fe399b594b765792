package domain

import (
	"time"

	dErrors "kycproxy/pkg/domain-errors"
)

// AdultAge is the inclusive age of majority used by the eligibility gate.
const AdultAge = 18

// BirthDateLayout is the accepted wire format for dates of birth.
const BirthDateLayout = "2006-01-02"

// AgeAt returns the subject's age in whole calendar years at now. Both dates
// are compared in UTC by (month, day) position, so a birthday falling on now
// counts as reached. A Feb 29 birthday is reached on Mar 1 in non-leap years.
// A birth date after now yields a negative age.
func AgeAt(birthDate, now time.Time) int {
	b := birthDate.UTC()
	n := now.UTC()

	age := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		age--
	}
	return age
}

// IsAdult reports whether the person born at birthDate is at least AdultAge
// years old at now.
//
// Example:
//
//	birthDate := time.Date(2000, 1, 15, 0, 0, 0, 0, time.UTC)
//	now := time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC) // 18th birthday
//	IsAdult(birthDate, now) // true
func IsAdult(birthDate, now time.Time) bool {
	return AgeAt(birthDate, now) >= AdultAge
}

// ParseBirthDate parses a YYYY-MM-DD date of birth and rejects dates in the
// future relative to now.
func ParseBirthDate(raw string, now time.Time) (time.Time, error) {
	birthDate, err := time.Parse(BirthDateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth must be formatted as YYYY-MM-DD")
	}
	if birthDate.After(now.UTC()) {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "date of birth cannot be in the future")
	}
	return birthDate, nil
}
