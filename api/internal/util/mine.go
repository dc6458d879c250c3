package util

import (
	"encoding/base64"
	"strings"
)

// SplitDataURL separates "data:image/<type>;base64,<payload>" into MIME and payload.
// Any other input is returned whole with defMIME.
func SplitDataURL(s, defMIME string) (mime, payload string) {
	if !strings.HasPrefix(s, "data:") {
		return defMIME, s
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return defMIME, s
	}
	meta := s[len("data:"):idx] // "<mime>;base64"
	data := s[idx+1:]
	mt, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" || data == "" || !isImageMIME(mt) {
		return defMIME, s
	}
	return mt, data
}

func isImageMIME(mt string) bool {
	sub, ok := strings.CutPrefix(mt, "image/")
	if !ok || sub == "" {
		return false
	}
	for _, r := range sub {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// DecodeBase64 accepts standard base64 and falls back to the URL-safe alphabet.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, nil
	}
	return nil, err
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
