// Package correlation packs ticket context into the opaque strings carried
// by interactive chat elements and unpacks them when the element fires.
package correlation

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultDelimiter separates token fields.
const DefaultDelimiter = "@@"

// DefaultMaxLen is the smallest payload limit among the elements a token
// travels in (select option values).
const DefaultMaxLen = 150

var (
	ErrMalformedToken = errors.New("malformed correlation token")
	ErrTokenTooLong   = errors.New("correlation token exceeds payload budget")
	ErrEmptyToken     = errors.New("empty correlation token")
	ErrBadDelimiter   = errors.New("unusable token delimiter")
)

// Codec joins positional fields into a token and splits them back. Field
// values are percent-escaped so a value containing the delimiter cannot
// shift field boundaries. The codec is stateless.
type Codec struct {
	delimiter string
	maxLen    int
	escaper   *strings.Replacer
	unescaper *strings.Replacer
}

// NewCodec builds a codec. Empty delimiter and non-positive maxLen fall
// back to defaults. The delimiter must be printable ASCII and must not
// contain '%' or hex digits, which make up the escape sequences.
func NewCodec(delimiter string, maxLen int) (*Codec, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if err := validateDelimiter(delimiter); err != nil {
		return nil, err
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	first := delimiter[:1]
	return &Codec{
		delimiter: delimiter,
		maxLen:    maxLen,
		// '%' must be escaped first on encode and restored last on decode.
		escaper:   strings.NewReplacer("%", "%25", first, percent(first[0])),
		unescaper: strings.NewReplacer(percent(first[0]), first, "%25", "%"),
	}, nil
}

func validateDelimiter(d string) error {
	for i := 0; i < len(d); i++ {
		b := d[i]
		switch {
		case b < 0x21 || b > 0x7e:
			return fmt.Errorf("%w %q: byte %#x is not printable ASCII", ErrBadDelimiter, d, b)
		case b == '%', isHexDigit(b):
			return fmt.Errorf("%w %q: %q collides with escape sequences", ErrBadDelimiter, d, b)
		}
	}
	return nil
}

func isHexDigit(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}

// Default returns a codec with the default delimiter and budget.
func Default() *Codec {
	c, _ := NewCodec(DefaultDelimiter, DefaultMaxLen)
	return c
}

func percent(b byte) string {
	return fmt.Sprintf("%%%02X", b)
}

// Encode joins fields into a token.
func (c *Codec) Encode(fields ...string) (string, error) {
	if len(fields) == 0 {
		return "", ErrEmptyToken
	}
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = c.escaper.Replace(f)
	}
	token := strings.Join(escaped, c.delimiter)
	if len(token) > c.maxLen {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTokenTooLong, len(token), c.maxLen)
	}
	return token, nil
}

// MustEncode is Encode for call sites whose fields are short platform ids.
func (c *Codec) MustEncode(fields ...string) string {
	token, err := c.Encode(fields...)
	if err != nil {
		panic(err)
	}
	return token
}

// Decode splits a token and checks it has exactly want fields. Each call
// site documents its own positional schema.
func (c *Codec) Decode(token string, want int) ([]string, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	parts := strings.Split(token, c.delimiter)
	if len(parts) != want {
		return nil, fmt.Errorf("%w: got %d fields, want %d", ErrMalformedToken, len(parts), want)
	}
	for i, p := range parts {
		parts[i] = c.unescaper.Replace(p)
	}
	return parts, nil
}
