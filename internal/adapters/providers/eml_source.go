package providers

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/domain/detection"
)

// EMLSource implements ports.EmailSource for RFC 5322 messages (.eml files).
// One file holds exactly one message.
type EMLSource struct {
	logger *zap.Logger
}

// NewEMLSource creates a new MIME reader
func NewEMLSource(logger *zap.Logger) *EMLSource {
	return &EMLSource{logger: logger}
}

// Load parses the message in r into a submission
func (s *EMLSource) Load(ctx context.Context, r io.Reader) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse message: %v", domain.ErrInvalidInput, err)
	}
	for _, perr := range env.Errors {
		s.logger.Debug("MIME parse warning", zap.String("error", perr.Error()))
	}

	sub := domain.Submission{
		ID:        messageID(env.GetHeader("Message-Id")),
		Sender:    sender(env.GetHeader("From")),
		To:        env.GetHeader("To"),
		CC:        env.GetHeader("Cc"),
		BCC:       env.GetHeader("Bcc"),
		Subject:   env.GetHeader("Subject"),
		Body:      env.Text,
		HTMLBody:  env.HTML,
		Timestamp: s.date(env.GetHeader("Date")),
		Headers:   headers(env),
		Labels:    labels(env.GetHeader("X-Gmail-Labels")),
	}

	return []domain.Submission{sub}, nil
}

func (s *EMLSource) date(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	t, err := mail.ParseDate(value)
	if err != nil {
		s.logger.Warn("Unparsable Date header", zap.String("date", value), zap.Error(err))
		return time.Now().UTC()
	}
	return t.UTC()
}

// Messages without a Message-ID get a random id, so re-loading them is not idempotent
func messageID(value string) string {
	id := strings.Trim(strings.TrimSpace(value), "<>")
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func sender(from string) domain.Sender {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		address := strings.ToLower(strings.TrimSpace(from))
		return domain.Sender{Address: address, Domain: detection.ExtractDomain(address)}
	}
	address := strings.ToLower(addr.Address)
	return domain.Sender{
		Address:     address,
		Domain:      detection.ExtractDomain(address),
		DisplayName: addr.Name,
	}
}

func headers(env *enmime.Envelope) []domain.Header {
	keys := env.GetHeaderKeys()
	sort.Strings(keys)

	out := make([]domain.Header, 0, len(keys))
	for _, key := range keys {
		for _, value := range env.GetHeaderValues(key) {
			out = append(out, domain.Header{Name: key, Value: value})
		}
	}
	return out
}

func labels(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, l := range strings.Split(value, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
