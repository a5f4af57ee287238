package csvimport

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText returns b as a string. Files that are not valid UTF-8 are read
// as Windows-1252, the encoding bank exports use when not UTF-8.
func DecodeText(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
