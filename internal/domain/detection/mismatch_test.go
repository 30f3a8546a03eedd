package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
)

func TestDetectMismatches_URLLabelPointingElsewhere(t *testing.T) {
	html := `<a href="https://evil.test/x">https://bank.example.com/login</a>`

	mismatches := DetectMismatches(html, zap.NewNop())

	require.Len(t, mismatches, 1)
	assert.Equal(t, domain.URLMismatch{
		DisplayedURL:  "https://bank.example.com/login",
		ActualURL:     "https://evil.test/x",
		DisplayDomain: "bank.example.com",
		ActualDomain:  "evil.test",
	}, mismatches[0])
}

func TestDetectMismatches(t *testing.T) {
	tests := []struct {
		name          string
		html          string
		expectedCount int
		actualDomain  string
	}{
		{
			name:          "Target domain appears inside label",
			html:          `<a href="https://example.com/redirect?u=example.com">example.com</a>`,
			expectedCount: 0,
		},
		{
			name:          "Plain text label is not URL shaped",
			html:          `<a href="http://192.168.1.1/steal">Click here</a>`,
			expectedCount: 0,
		},
		{
			name:          "www label with apex target",
			html:          `<a href="https://example.com">https://www.example.com</a>`,
			expectedCount: 0,
		},
		{
			name:          "Email label with mailto to another domain",
			html:          `<a href="mailto:help@evil.test?subject=hi">support@bank.example.com</a>`,
			expectedCount: 1,
			actualDomain:  "evil.test",
		},
		{
			name:          "Bare domain label to another domain",
			html:          `<p>Visit <a href="http://login-verify.test/a">paypal.com</a></p>`,
			expectedCount: 1,
			actualDomain:  "login-verify.test",
		},
		{
			name:          "Unparsable target is skipped",
			html:          `<a href="http://[::1">https://bank.example.com</a>`,
			expectedCount: 0,
		},
		{
			name:          "Anchor without label is ignored",
			html:          `<a href="https://evil.test"><img src="logo.png"></a>`,
			expectedCount: 0,
		},
		{
			name: "Duplicate anchors reported once",
			html: `<a href="https://evil.test/x">https://bank.example.com</a>
			       <a href="https://evil.test/x">https://bank.example.com</a>`,
			expectedCount: 1,
			actualDomain:  "evil.test",
		},
		{
			name:          "Empty document",
			html:          "",
			expectedCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mismatches := DetectMismatches(tt.html, nil)
			require.Len(t, mismatches, tt.expectedCount)
			if tt.expectedCount > 0 {
				assert.Equal(t, tt.actualDomain, mismatches[0].ActualDomain)
			}
		})
	}
}
