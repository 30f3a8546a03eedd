package detection

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/phishfinder/backend/internal/domain"
)

var (
	newlineRegex    = regexp.MustCompile(`\r\n|\r`)
	blankLinesRegex = regexp.MustCompile(`\n\s*\n\s*\n`)
	sentenceRegex   = regexp.MustCompile(`[.!?]+`)
	signatureRegex  = regexp.MustCompile(`^(--\s*|Sent from.*)$`)
)

// blockElements get a trailing newline so text from adjacent blocks does not run together
const blockElements = "br, p, div, tr, li, h1, h2, h3, h4, h5, h6, blockquote, table"

// CleanedBody holds the two views of an email body used by the pipeline
type CleanedBody struct {
	// PreservedHTML keeps markup for link analysis, with newlines normalized
	PreservedHTML string
	// CleanedText is readable text without markup, whitespace collapsed and signature removed
	CleanedText string
}

// CleanBody derives the HTML-preserving and plain-text views of a body.
// If the body cannot be parsed the raw body is returned for both views.
func CleanBody(body string) CleanedBody {
	preserved := newlineRegex.ReplaceAllString(body, "\n")
	preserved = strings.TrimSpace(blankLinesRegex.ReplaceAllString(preserved, "\n\n"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return CleanedBody{PreservedHTML: body, CleanedText: body}
	}
	doc.Find("script, style, link, meta, img, head").Remove()
	doc.Find(blockElements).AfterHtml("\n")

	text := newlineRegex.ReplaceAllString(doc.Text(), "\n")
	text = cutSignature(text)

	return CleanedBody{
		PreservedHTML: preserved,
		CleanedText:   collapseWhitespace(text),
	}
}

// ExtractReadableText returns the visible text of an HTML document
func ExtractReadableText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("style, script, link, meta, img").Remove()
	doc.Find(blockElements).AfterHtml("\n")
	return collapseWhitespace(doc.Find("body").Text())
}

// ComputeTextMetrics measures the original body against its cleaned and readable forms
func ComputeTextMetrics(original, cleaned, readable string) domain.TextMetrics {
	sentences := 0
	for _, s := range sentenceRegex.Split(readable, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	return domain.TextMetrics{
		OriginalLength: len([]rune(original)),
		CleanedLength:  len([]rune(cleaned)),
		WordCount:      len(strings.Fields(readable)),
		Sentences:      sentences,
	}
}

// cutSignature drops everything from the first signature delimiter line
func cutSignature(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if signatureRegex.MatchString(strings.TrimSpace(line)) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return text
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
