package detection

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/phishfinder/backend/internal/domain"
)

var (
	// textURLRegex matches absolute http(s) URLs in free text
	textURLRegex = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'|]+`)

	strayCharReplacer = strings.NewReplacer(`"`, "", "'", "", "<", "", ">", "")
)

// ExtractURLs returns the deduplicated, normalized URLs found in content.
//
// HTML input contributes anchor href values plus any URL appearing in the
// document text (including anchor labels). Plain text is regex-scanned.
// Malformed candidates are dropped. A URL is marked suspicious when its host
// is an IPv4 literal.
func ExtractURLs(content string, isHTML bool) []domain.ExtractedURL {
	if content == "" {
		return []domain.ExtractedURL{}
	}

	var candidates []string
	if isHTML {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			// Not parseable as HTML, treat it as text
			candidates = textURLCandidates(content)
		} else {
			doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				if href, ok := a.Attr("href"); ok {
					candidates = append(candidates, href)
				}
			})
			candidates = append(candidates, textURLCandidates(doc.Text())...)
		}
	} else {
		candidates = textURLCandidates(content)
	}

	return buildURLSet(candidates)
}

// NormalizeURL applies the cleanup pipeline to one candidate and validates it.
// The steps run in a fixed order: trim whitespace, strip quotes and angle
// brackets, cut at the first pipe or whitespace, unescape "&amp;", drop one
// trailing slash. The result must be an absolute http(s) URL with a host.
func NormalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strayCharReplacer.Replace(s)
	if i := strings.IndexFunc(s, func(r rune) bool { return r == '|' || unicode.IsSpace(r) }); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.TrimSuffix(s, "/")

	if s == "" {
		return "", false
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return "", false
	}
	return s, true
}

// MergeURLs unions several URL lists, keeping first-seen order.
// A URL is suspicious in the result if any input marked it so.
func MergeURLs(lists ...[]domain.ExtractedURL) []domain.ExtractedURL {
	merged := make([]domain.ExtractedURL, 0)
	index := make(map[string]int)
	for _, list := range lists {
		for _, u := range list {
			if i, ok := index[u.URL]; ok {
				merged[i].Suspicious = merged[i].Suspicious || u.Suspicious
				if merged[i].ThreatType == "" {
					merged[i].ThreatType = u.ThreatType
				}
				continue
			}
			index[u.URL] = len(merged)
			merged = append(merged, u)
		}
	}
	return merged
}

// URLStrings returns the URL values of a list, in order
func URLStrings(urls []domain.ExtractedURL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.URL
	}
	return out
}

func textURLCandidates(text string) []string {
	matches := textURLRegex.FindAllString(text, -1)
	for i, m := range matches {
		// Sentence punctuation glued to the end of a URL in prose
		matches[i] = strings.TrimRight(m, ".,;:!?)]}")
	}
	return matches
}

func buildURLSet(candidates []string) []domain.ExtractedURL {
	urls := make([]domain.ExtractedURL, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		normalized, ok := NormalizeURL(c)
		if !ok {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, domain.ExtractedURL{
			URL:        normalized,
			Suspicious: IsIPHost(URLHost(normalized)),
		})
	}
	return urls
}
