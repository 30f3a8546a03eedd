package detection

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
)

var (
	labelURLRegex   = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)
	labelEmailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})$`)
	bareDomainRegex = regexp.MustCompile(`(?i)^(?:www\.)?(?:[a-z0-9-]+\.)+[a-z]{2,}(?::\d+)?(?:[/?#]\S*)?$`)
)

// DetectMismatches inspects the anchors of an HTML document and reports
// links whose visible label names a different domain than the link target.
//
// A mismatch requires the label to look like a URL or an email address, its
// domain to differ from the target's, and the target domain not to appear
// anywhere inside the label. Anchors that cannot be parsed are skipped.
func DetectMismatches(htmlContent string, logger *zap.Logger) []domain.URLMismatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	mismatches := make([]domain.URLMismatch, 0)
	if strings.TrimSpace(htmlContent) == "" {
		return mismatches
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		logger.Warn("Failed to parse HTML for mismatch detection", zap.Error(err))
		return mismatches
	}

	seen := make(map[[2]string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		label := strings.Join(strings.Fields(a.Text()), " ")
		if href == "" || label == "" {
			return
		}

		displayed, displayDomain, ok := labelDomain(label)
		if !ok {
			return // Label is ordinary text such as "Click here"
		}

		actualDomain, err := targetDomain(href)
		if err != nil {
			logger.Debug("Skipping link with unparsable target",
				zap.String("url", href), zap.Error(err))
			return
		}
		if actualDomain == "" {
			return
		}

		if displayDomain == actualDomain || strings.Contains(strings.ToLower(label), actualDomain) {
			return
		}

		key := [2]string{displayed, href}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		mismatches = append(mismatches, domain.URLMismatch{
			DisplayedURL:  displayed,
			ActualURL:     href,
			DisplayDomain: displayDomain,
			ActualDomain:  actualDomain,
		})
	})

	return mismatches
}

// labelDomain returns the URL-like part of a label and its domain, if the label looks like a URL or an address
func labelDomain(label string) (string, string, bool) {
	if m := labelURLRegex.FindString(label); m != "" {
		if host := URLHost(strings.TrimRight(m, ".,;:!?)")); host != "" {
			return m, host, true
		}
	}

	if m := labelEmailRegex.FindStringSubmatch(label); m != nil {
		return label, strings.ToLower(m[1]), true
	}

	if bareDomainRegex.MatchString(label) {
		if host := URLHost("https://" + label); host != "" {
			return label, host, true
		}
	}

	return "", "", false
}

// targetDomain extracts the domain an href points to.
// mailto: targets yield the part after "@"; other schemes than http(s) yield "".
func targetDomain(href string) (string, error) {
	if strings.HasPrefix(strings.ToLower(href), "mailto:") {
		addr := href[len("mailto:"):]
		if i := strings.IndexAny(addr, "?,"); i >= 0 {
			addr = addr[:i]
		}
		unescaped, err := url.PathUnescape(addr)
		if err != nil {
			return "", err
		}
		return ExtractDomain(unescaped), nil
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", nil
	}
	return strings.ToLower(u.Hostname()), nil
}
