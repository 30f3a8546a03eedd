package detection

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/phishfinder/backend/internal/domain"
)

// Pattern categories
const (
	PatternUrgency    = "Urgency/Threat"
	PatternCredential = "Credential Harvesting"
	PatternFinancial  = "Financial"
	PatternPrize      = "Prize/Reward"
)

// Locations a pattern can match in
const (
	LocationSubject = "subject"
	LocationBody    = "body"
)

type patternRule struct {
	category string
	regex    *regexp.Regexp
}

// patternRules is evaluated in order; each entry is an independent category
var patternRules = []patternRule{
	{PatternUrgency, regexp.MustCompile(`(?i)urgent|immediate action|account.*suspend|verify.*account`)},
	{PatternCredential, regexp.MustCompile(`(?i)password|credential|login|sign in`)},
	{PatternFinancial, regexp.MustCompile(`(?i)\$|money|payment|transfer|bank|account`)},
	{PatternPrize, regexp.MustCompile(`(?i)won|winner|lottery|prize|reward`)},
}

// AnalyzePatterns scans subject and body for suspicious language.
// Each category matching in a location yields one entry carrying the
// deduplicated literal matches, subject entries first.
func AnalyzePatterns(subject, body string) []domain.SuspiciousPattern {
	results := make([]domain.SuspiciousPattern, 0)

	for _, loc := range []struct {
		text     string
		location string
	}{
		{subject, LocationSubject},
		{body, LocationBody},
	} {
		if loc.text == "" {
			continue
		}
		// Fold compatibility characters (full-width letters, ligatures) before matching
		text := norm.NFKC.String(loc.text)

		for _, rule := range patternRules {
			matches := rule.regex.FindAllString(text, -1)
			if len(matches) == 0 {
				continue
			}
			results = append(results, domain.SuspiciousPattern{
				Type:     rule.category,
				Location: loc.location,
				Matches:  uniqueStrings(matches),
			})
		}
	}

	return results
}

// PatternCategories returns the number of distinct categories across all locations
func PatternCategories(patterns []domain.SuspiciousPattern) int {
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		seen[p.Type] = struct{}{}
	}
	return len(seen)
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
