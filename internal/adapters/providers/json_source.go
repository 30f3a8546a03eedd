package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/phishfinder/backend/internal/domain"
)

// JSONSource implements ports.EmailSource for the submission JSON accepted by the HTTP API.
// The input is either one submission object or an array of them.
type JSONSource struct{}

// NewJSONSource creates a new JSON reader
func NewJSONSource() *JSONSource {
	return &JSONSource{}
}

// Load decodes every submission in r
func (s *JSONSource) Load(ctx context.Context, r io.Reader) ([]domain.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("%w: empty submission file", domain.ErrInvalidInput)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var subs []domain.Submission
		if err := dec.Decode(&subs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return subs, nil
	}

	var sub domain.Submission
	if err := dec.Decode(&sub); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return []domain.Submission{sub}, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}
