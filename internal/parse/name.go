package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	idCardRe = regexp.MustCompile(`^\d{1,32}$`)
)

// FullName is a resident's name as typed at sign-in.
type FullName struct {
	Last       string
	First      string
	Patronymic string
}

// ParseFullName splits "Last First [Patronymic]". Runs of whitespace, including
// non-breaking spaces, count as one separator.
func ParseFullName(raw string) (FullName, error) {
	s := strings.ReplaceAll(raw, "\u00a0", " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return FullName{}, fmt.Errorf("empty name")
	}

	parts := strings.Split(s, " ")
	switch len(parts) {
	case 2:
		return FullName{Last: parts[0], First: parts[1]}, nil
	case 3:
		return FullName{Last: parts[0], First: parts[1], Patronymic: parts[2]}, nil
	default:
		return FullName{}, fmt.Errorf("unable to parse name %q: want last and first name, optionally a patronymic", raw)
	}
}

// ParseIDCard accepts a student id card number, digits only.
func ParseIDCard(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !idCardRe.MatchString(s) {
		return "", fmt.Errorf("invalid id card number %q", raw)
	}
	return s, nil
}
