package detection

import (
	"mime"
	"net/mail"
	"regexp"
	"strings"

	"github.com/phishfinder/backend/internal/domain"
)

var (
	displayNameRegex = regexp.MustCompile(`^"?([^"<]+?)"?\s*<([^>]*)>$`)
	angleAddrRegex   = regexp.MustCompile(`<([^>]*)>`)
)

// addressParser decodes RFC 2047 encoded display names
var addressParser = &mail.AddressParser{WordDecoder: &mime.WordDecoder{}}

// ParseRecipients splits a comma-separated address list.
// Lists that are not valid RFC 5322 fall back to a lenient comma split.
func ParseRecipients(list string) []domain.Recipient {
	recipients := make([]domain.Recipient, 0)
	if strings.TrimSpace(list) == "" {
		return recipients
	}

	if addrs, err := addressParser.ParseList(list); err == nil {
		for _, a := range addrs {
			address := strings.ToLower(a.Address)
			recipients = append(recipients, domain.Recipient{
				Address:     address,
				DisplayName: strings.TrimSpace(a.Name),
				Domain:      ExtractDomain(address),
			})
		}
		return recipients
	}

	for _, part := range splitAddressList(list) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		recipients = append(recipients, domain.Recipient{
			Address:     bareAddress(part),
			DisplayName: ExtractDisplayName(part),
			Domain:      ExtractDomain(part),
		})
	}
	return recipients
}

// ExtractDisplayName returns the name of a `Name <addr>` string, or "" without one
func ExtractDisplayName(s string) string {
	s = strings.TrimSpace(s)
	if a, err := addressParser.Parse(s); err == nil {
		return strings.TrimSpace(a.Name)
	}
	m := displayNameRegex.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// bareAddress returns the address inside angle brackets, or the whole string
func bareAddress(s string) string {
	if m := angleAddrRegex.FindStringSubmatch(s); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"`))
}

// splitAddressList splits on commas outside double quotes, so `"Doe, Jane" <j@x.io>` stays whole
func splitAddressList(list string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false
	for _, r := range list {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(parts, b.String())
}
