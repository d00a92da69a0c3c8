package contract

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// EncodeEmbeddedJSON encodes a JSON string so it can be nested inside
// another JSON value without escaping.
func EncodeEmbeddedJSON(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeEmbeddedJSON reverses EncodeEmbeddedJSON. Characters outside the
// base64 alphabet are skipped. Undecodable input yields "".
func DecodeEmbeddedJSON(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			return r
		}
		return -1
	}, s)
	data, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return ""
	}
	return string(data)
}

// EmbedValue marshals v and encodes the result with EncodeEmbeddedJSON.
func EmbedValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return EncodeEmbeddedJSON(string(data)), nil
}
