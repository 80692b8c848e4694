package payload

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is the payload charset used when none is configured.
const DefaultEncoding = "utf-8"

// replacementChar substitutes undecodable input.
const replacementChar = "�"

// errEmptyEncoding is returned by Validate for a blank charset name.
var errEmptyEncoding = errors.New("encoding name is empty")

// Decoder converts payload bytes to text using a fixed charset.
// It is safe for concurrent use.
type Decoder struct {
	// name is the canonical charset name.
	name string
	// enc is the charset used for decoding.
	enc encoding.Encoding
}

// NewDecoder returns a decoder for the WHATWG charset label name
// (e.g. "utf-8", "windows-1251", "iso-8859-1"). An empty name selects UTF-8.
func NewDecoder(name string) (*Decoder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UTF8(), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown payload encoding %q: %w", name, err)
	}

	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = strings.ToLower(name)
	}

	return &Decoder{
		name: canonical,
		enc:  enc,
	}, nil
}

// UTF8 returns the default decoder.
func UTF8() *Decoder {
	return &Decoder{
		name: DefaultEncoding,
		enc:  unicode.UTF8,
	}
}

// Validate reports whether name is a supported charset label.
func Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return errEmptyEncoding
	}

	_, err := NewDecoder(name)

	return err
}

// Name returns the canonical charset name.
func (d *Decoder) Name() string {
	return d.name
}

// Decode converts raw into valid UTF-8 text. It never fails.
func (d *Decoder) Decode(raw []byte) string {
	decoded, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), replacementChar)
	}

	return strings.ToValidUTF8(string(decoded), replacementChar)
}
