package utils

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"github.com/mogaika/md5_browser/config"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// DecodeText converts raw file content into UTF-8.
// Input that is already valid UTF-8 is passed through with the BOM removed,
// anything else is decoded with the configured single byte charmap.
func DecodeText(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}

	out, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), raw)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode text as %v", config.GetEncoding())
	}
	return out, nil
}
