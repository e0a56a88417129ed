// Package persistence holds pieces shared by the record repositories.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/footprint/internal/domain"
)

const cursorVersion = "1"

// ErrInvalidCursor is returned for tokens EncodeCursor did not produce.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor turns the position after the last returned record into an
// opaque URL-safe token. A nil cursor encodes to "".
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := strings.Join([]string{cursorVersion, strconv.FormatInt(c.OccurredAt.UnixNano(), 10), c.ID}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. A blank token means
// the first page and yields nil.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 3 || parts[0] != cursorVersion {
		return nil, fmt.Errorf("%w: unexpected format", ErrInvalidCursor)
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: record id: %v", ErrInvalidCursor, err)
	}
	return &domain.Cursor{OccurredAt: time.Unix(0, nanos).UTC(), ID: id.String()}, nil
}
