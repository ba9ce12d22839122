// Package media decodes uploaded lineup images and stores them where the
// site can serve them.
package media

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the largest decoded image accepted.
const MaxImageBytes = 5 << 20

var (
	ErrNotImage = errors.New("media: body must be an image")
	ErrTooLarge = errors.New("media: image is too large")
)

// DecodeImage accepts an upload body in any of the forms clients send:
// a data URL ("data:image/png;base64,..."), bare base64 text, or raw
// bytes. It returns the image bytes and their content type.
func DecodeImage(body []byte, headerCT string) ([]byte, string, error) {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil, "", ErrNotImage
	}

	var (
		data []byte
		ct   string
	)
	switch {
	case strings.HasPrefix(s, "data:"):
		meta, payload, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return nil, "", ErrNotImage
		}
		declared, _, _ := strings.Cut(meta, ";")
		if !strings.HasPrefix(declared, "image/") {
			return nil, "", ErrNotImage
		}
		decoded, ok := decodeBase64(payload)
		if !ok {
			return nil, "", ErrNotImage
		}
		data, ct = decoded, sniffImageType(decoded, declared)
	case looksLikeBase64(s):
		if decoded, ok := decodeBase64(s); ok {
			data, ct = decoded, sniffImageType(decoded, headerCT)
			break
		}
		data, ct = body, sniffImageType(body, headerCT)
	default:
		data, ct = body, sniffImageType(body, headerCT)
	}

	if ct == "" {
		return nil, "", ErrNotImage
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrTooLarge
	}
	return data, ct, nil
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	decoded, err := base64.RawStdEncoding.DecodeString(s)
	return decoded, err == nil
}

// sniffImageType detects the type from the bytes. The declared type is only
// trusted when detection finds nothing more specific than opaque binary.
// Returns "" when the data is not an image.
func sniffImageType(data []byte, declared string) string {
	detected := mimetype.Detect(data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	declared, _, _ = strings.Cut(declared, ";")
	if strings.HasPrefix(declared, "image/") && detected.Is("application/octet-stream") {
		return declared
	}
	return ""
}

// looksLikeBase64 reports whether s only contains base64 alphabet bytes.
func looksLikeBase64(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '=' || c == '\n' || c == '\r':
		default:
			return false
		}
	}
	return true
}
