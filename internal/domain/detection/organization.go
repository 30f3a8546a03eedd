package detection

import (
	"regexp"
	"strings"
	"unicode"
)

// freeMailProviders host personal mailboxes, so their domain says nothing about an organization
var freeMailProviders = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"aol.com":        {},
	"icloud.com":     {},
	"protonmail.com": {},
}

var (
	orgIndicators = []*regexp.Regexp{
		// Name followed by a corporate or department suffix
		regexp.MustCompile(`([A-Z][A-Za-z0-9 &.,]+?)\s+(?:Corporation|Inc|LLC|Ltd|Company|Department|Team)\b`),
		// Signature sign-off
		regexp.MustCompile(`(?:Regards|Sincerely|Thanks),?\s*([A-Z][A-Za-z0-9 &.,]+)`),
		// Letterhead
		regexp.MustCompile(`(?m)^([A-Z][A-Za-z0-9 &.,]+?)\s+(?:Headquarters|Office|Building)\b`),
	}
	orgCharsRegex = regexp.MustCompile(`[^\w\s&.,]`)

	orgSuffixRegexes = func() []*regexp.Regexp {
		suffixes := []string{"Inc", "LLC", "Ltd", "Limited", "Corp", "Corporation", "Co", "Company", "Team", "Department", "Dept"}
		out := make([]*regexp.Regexp, len(suffixes))
		for i, s := range suffixes {
			out[i] = regexp.MustCompile(`(?i)[\s,]*\b` + s + `\.?\s*$`)
		}
		return out
	}()
)

// ExtractOrganization guesses the sending organization from the sender domain
// and, failing that, from the body. Free-mail domains and unmatched bodies yield "".
func ExtractOrganization(senderDomain, body string) string {
	senderDomain = strings.ToLower(strings.TrimSpace(senderDomain))
	if senderDomain == "" {
		return ""
	}
	if _, ok := freeMailProviders[RootDomain(senderDomain)]; ok {
		return ""
	}

	if org := organizationFromDomain(senderDomain); len(org) > 3 {
		return org
	}

	for _, pattern := range orgIndicators {
		m := pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		extracted := strings.Join(strings.Fields(orgCharsRegex.ReplaceAllString(m[1], "")), " ")
		extracted = strings.TrimRight(extracted, " ,.")
		if len(extracted) > 3 && len(extracted) < 50 {
			return extracted
		}
	}

	return ""
}

// CleanOrgName strips a trailing legal or department suffix from an organization name
func CleanOrgName(name string) string {
	cleaned := strings.TrimSpace(name)
	for _, re := range orgSuffixRegexes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// organizationFromDomain title-cases the first label of the registrable domain
func organizationFromDomain(senderDomain string) string {
	label := strings.SplitN(RootDomain(senderDomain), ".", 2)[0]
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
