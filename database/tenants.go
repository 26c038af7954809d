package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var ErrUnknownTenant = errors.New("unknown tenant")

// Domains end up in a database identifier, so only a conservative charset is accepted.
var domainPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

func validDomain(domain string) bool {
	return domainPattern.MatchString(domain)
}

// PatternResolver derives the database name as prefix + domain + suffix.
type PatternResolver struct {
	Prefix string
	Suffix string
}

func (r PatternResolver) Resolve(_ context.Context, domain string) (string, error) {
	if !validDomain(domain) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, domain)
	}
	return r.Prefix + domain + r.Suffix, nil
}
