package detection

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	"github.com/phishfinder/backend/internal/domain"
)

var (
	domainSyntaxRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-_.]+[a-zA-Z0-9]$`)
	emailRegex        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// ExtractDomain extracts the lowercased domain from an email address
func ExtractDomain(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "<"); i >= 0 {
		email = strings.TrimSuffix(email[i+1:], ">")
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "" // Malformed email address
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// ValidateEmail performs basic email format validation
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidateDomain checks domain syntax and returns its lowercased ASCII form.
// Only letters, digits, hyphens, underscores and dots are accepted, up to 253 characters.
func ValidateDomain(name string) (string, error) {
	name = strings.TrimRight(strings.TrimSpace(name), ".")
	if name == "" || len(name) > 253 || !domainSyntaxRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDomain, name)
	}

	ascii, err := idna.New(idna.MapForLookup(), idna.Transitional(false), idna.StrictDomainName(false)).ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", domain.ErrInvalidDomain, name, err)
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: %q has no TLD", domain.ErrInvalidDomain, name)
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", fmt.Errorf("%w: %q has an invalid label", domain.ErrInvalidDomain, name)
		}
	}

	return strings.ToLower(ascii), nil
}

// IsIPHost reports whether host is a literal IPv4 address
func IsIPHost(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil
}

// RootDomain reduces a hostname to its registrable domain (eTLD+1).
// IP literals and hosts the public suffix list cannot reduce are returned unchanged.
func RootDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || IsIPHost(host) {
		return host
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}

// URLHost returns the lowercased hostname of an absolute URL, or "" if it does not parse
func URLHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// containsAny checks if text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
