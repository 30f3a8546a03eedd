package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

var (
	_ ports.EmailSource = (*JSONSource)(nil)
	_ ports.EmailSource = (*EMLSource)(nil)
)

func TestJSONSource_Load(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectedIDs []string
		expectErr   bool
	}{
		{
			name:        "Single object",
			input:       `{"id":"a","subject":"Hi","body":"hello"}`,
			expectedIDs: []string{"a"},
		},
		{
			name:        "Array with leading whitespace",
			input:       "\n  [{\"id\":\"a\"},{\"id\":\"b\"}]",
			expectedIDs: []string{"a", "b"},
		},
		{name: "Empty input", input: "   ", expectErr: true},
		{name: "Malformed", input: `{"id":`, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := NewJSONSource().Load(context.Background(), strings.NewReader(tt.input))
			if tt.expectErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(subs))
			for _, s := range subs {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

const sampleEML = "From: \"Bank Support\" <Support@Bank.Example>\r\n" +
	"To: alice@example.com, bob@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"Date: Mon, 04 Mar 2024 10:15:00 +0100\r\n" +
	"Message-ID: <abc123@bank.example>\r\n" +
	"X-Gmail-Labels: Inbox, Important\r\n" +
	"Authentication-Results: mx.example.com; spf=fail smtp.mailfrom=bank.example\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please log in at https://evil.test/login\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<a href=\"https://evil.test/login\">https://bank.example/login</a>\r\n" +
	"--b1--\r\n"

func TestEMLSource_Load(t *testing.T) {
	subs, err := NewEMLSource(zap.NewNop()).Load(context.Background(), strings.NewReader(sampleEML))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]

	assert.Equal(t, "abc123@bank.example", sub.ID)
	assert.Equal(t, domain.Sender{Address: "support@bank.example", Domain: "bank.example", DisplayName: "Bank Support"}, sub.Sender)
	assert.Equal(t, "alice@example.com, bob@example.com", sub.To)
	assert.Equal(t, "Verify your account", sub.Subject)
	assert.Contains(t, sub.Body, "https://evil.test/login")
	assert.Contains(t, sub.HTMLBody, `href="https://evil.test/login"`)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC), sub.Timestamp)
	assert.Equal(t, []string{"Inbox", "Important"}, sub.Labels)

	found := false
	for _, h := range sub.Headers {
		if h.Name == "Authentication-Results" {
			found = true
			assert.Contains(t, h.Value, "spf=fail")
		}
	}
	assert.True(t, found)
}

func TestEMLSource_MissingMessageID(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: x\r\n\r\nbody\r\n"
	subs, err := NewEMLSource(zap.NewNop()).Load(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.NotEmpty(t, subs[0].ID)
	assert.Equal(t, "example.com", subs[0].Sender.Domain)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	tests := []struct {
		path      string
		expectErr bool
	}{
		{"mail.json", false},
		{"mail.EML", false},
		{"/tmp/dir/message.eml", false},
		{"mail.txt", true},
		{"noext", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			source, err := r.ForPath(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, source)
		})
	}
}
