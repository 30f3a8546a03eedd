package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phishfinder/backend/internal/domain"
)

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name     string
		list     string
		expected []domain.Recipient
	}{
		{
			name: "Quoted name containing a comma",
			list: `"Doe, Jane" <Jane@X.io>, bob@example.com`,
			expected: []domain.Recipient{
				{Address: "jane@x.io", DisplayName: "Doe, Jane", Domain: "x.io"},
				{Address: "bob@example.com", Domain: "example.com"},
			},
		},
		{
			name: "Unquoted display name",
			list: "Alice <alice@example.org>",
			expected: []domain.Recipient{
				{Address: "alice@example.org", DisplayName: "Alice", Domain: "example.org"},
			},
		},
		{
			name: "Escaped quote inside a quoted name",
			list: `"Doe \"JJ\", Jane" <j@x.io>`,
			expected: []domain.Recipient{
				{Address: "j@x.io", DisplayName: `Doe "JJ", Jane`, Domain: "x.io"},
			},
		},
		{
			name: "Encoded word display name",
			list: "=?UTF-8?Q?Jos=C3=A9?= <jose@x.io>",
			expected: []domain.Recipient{
				{Address: "jose@x.io", DisplayName: "José", Domain: "x.io"},
			},
		},
		{
			name: "Comment is not part of the name",
			list: "Jane (work) <j@x.io>",
			expected: []domain.Recipient{
				{Address: "j@x.io", DisplayName: "Jane", Domain: "x.io"},
			},
		},
		{
			name: "Malformed list uses lenient split",
			list: "Support <help@bank.example>, not an address",
			expected: []domain.Recipient{
				{Address: "help@bank.example", DisplayName: "Support", Domain: "bank.example"},
				{Address: "not an address"},
			},
		},
		{
			name:     "Empty list",
			list:     "",
			expected: []domain.Recipient{},
		},
		{
			name: "Stray separators",
			list: " , carol@example.net ,",
			expected: []domain.Recipient{
				{Address: "carol@example.net", Domain: "example.net"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRecipients(tt.list))
		})
	}
}

func TestExtractDisplayName(t *testing.T) {
	assert.Equal(t, "Alice", ExtractDisplayName("Alice <a@b.com>"))
	assert.Equal(t, "Bank Support", ExtractDisplayName(`"Bank Support" <support@bank.example>`))
	assert.Equal(t, "", ExtractDisplayName("a@b.com"))
	assert.Equal(t, "José", ExtractDisplayName("=?UTF-8?Q?Jos=C3=A9?= <jose@x.io>"))
}
