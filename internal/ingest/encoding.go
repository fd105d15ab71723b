package ingest

// encoding.go normalizes uploaded delimited text to UTF-8 before parsing.
//
// Spreadsheet exports from Excel commonly arrive as UTF-8 with a BOM,
// UTF-16 with a BOM ("Unicode text"), or Windows-1252. Each is detected and
// decoded so the CSV reader only ever sees UTF-8.

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeText detects the encoding of data, strips any BOM and returns UTF-8
// bytes along with the detected encoding name.
func decodeText(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return data, "utf-8", nil
	}

	if bytes.HasPrefix(data, bomUTF8) {
		return data[len(bomUTF8):], "utf-8-bom", nil
	}

	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		// UseBOM consumes the BOM and picks the byte order from it.
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("encoding error: utf-16: %w", err)
		}
		return decoded, "utf-16", nil
	}

	if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	// Windows-1252 is a superset of Latin-1 for printable characters and is
	// what Excel on Windows writes for "CSV (Comma delimited)".
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("encoding error: windows-1252: %w", err)
	}
	return decoded, "windows-1252", nil
}
