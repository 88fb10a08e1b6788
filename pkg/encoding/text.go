// Package encoding provides text encoding utilities for MD5 source files and
// asset paths.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeSource returns source text as UTF-8.
// A leading byte order mark is dropped. Input that is not valid UTF-8 is
// taken as Windows-1252, which is what most exporters wrote joint names and
// shader paths in. Returns the input unchanged if conversion fails.
func DecodeSource(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}

	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return data
	}
	return result
}

// NormalizePath normalizes an asset path for case-insensitive lookup:
// forward slashes, lower case, no leading "./" or "/".
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ToLower(path)
	for {
		switch {
		case strings.HasPrefix(path, "./"):
			path = path[2:]
		case strings.HasPrefix(path, "/"):
			path = path[1:]
		default:
			return path
		}
	}
}
