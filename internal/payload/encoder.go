package payload

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Encode converts text to the charset named by encodingName, for senders
// talking to receivers configured with a legacy charset. Characters the
// charset cannot represent produce an error.
func Encode(encodingName, text string) ([]byte, error) {
	encodingName = strings.TrimSpace(encodingName)
	if encodingName == "" || strings.EqualFold(encodingName, DefaultEncoding) {
		return []byte(text), nil
	}

	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return nil, fmt.Errorf("unknown payload encoding %q: %w", encodingName, err)
	}

	encoded, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode payload as %s: %w", encodingName, err)
	}

	return encoded, nil
}
