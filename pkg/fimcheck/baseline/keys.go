package baseline

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Paths are arbitrary byte strings but JSON strings are Unicode. A byte
// that is not part of a valid UTF-8 sequence is written as the lone
// surrogate escape \udcXX (0x80 <= XX <= 0xff), the same form Python's
// surrogateescape produces, so valid names are stored unchanged and
// invalid ones round-trip exactly.
//
// JSON decoders replace lone surrogates with U+FFFD, so before decoding
// each lone \udcXX escape is rewritten to \u0000\u00XX. NUL never occurs
// in a path, which makes the marker unambiguous; restorePath turns it back
// into the raw byte.

const (
	surrogateLow  = 0xdc80
	surrogateHigh = 0xdcff
	pathMarker    = '\x00'
)

// quotePath returns p as a quoted JSON string.
func quotePath(p string) ([]byte, error) {
	if utf8.ValidString(p) {
		return json.Marshal(p)
	}

	var buf bytes.Buffer
	buf.WriteByte('"')
	for len(p) > 0 {
		end := 0
		for end < len(p) {
			r, size := utf8.DecodeRuneInString(p[end:])
			if r == utf8.RuneError && size <= 1 {
				break
			}
			end += size
		}
		if end > 0 {
			quoted, err := json.Marshal(p[:end])
			if err != nil {
				return nil, err
			}
			buf.Write(quoted[1 : len(quoted)-1])
			p = p[end:]
			continue
		}
		fmt.Fprintf(&buf, `\u%04x`, surrogateLow-0x80+int(p[0]))
		p = p[1:]
	}
	buf.WriteByte('"')
	return buf.Bytes(), nil
}

// markEscapedBytes rewrites every lone \udc80-\udcff escape in a JSON
// document to the NUL marker form understood by restorePath.
func markEscapedBytes(data []byte) []byte {
	if !bytes.Contains(bytes.ToLower(data), []byte(`\udc`)) {
		return data
	}

	out := make([]byte, 0, len(data)+64)
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if data[i+1] != 'u' {
			out = append(out, data[i], data[i+1])
			i++
			continue
		}

		cp, ok := escapeAt(data, i)
		if !ok {
			out = append(out, data[i])
			continue
		}
		switch {
		case cp >= 0xd800 && cp <= 0xdbff:
			// A high surrogate consumes the low half that follows it.
			if low, ok := escapeAt(data, i+6); ok && low >= 0xdc00 && low <= 0xdfff {
				out = append(out, data[i:i+12]...)
				i += 11
				continue
			}
			out = append(out, data[i:i+6]...)
		case cp >= surrogateLow && cp <= surrogateHigh:
			out = append(out, fmt.Sprintf(`\u0000\u00%02x`, cp-surrogateLow+0x80)...)
		default:
			out = append(out, data[i:i+6]...)
		}
		i += 5
	}
	return out
}

// escapeAt decodes the \uXXXX escape starting at data[i].
func escapeAt(data []byte, i int) (int, bool) {
	if i+6 > len(data) || data[i] != '\\' || data[i+1] != 'u' {
		return 0, false
	}
	cp, err := strconv.ParseUint(string(data[i+2:i+6]), 16, 16)
	if err != nil {
		return 0, false
	}
	return int(cp), true
}

// restorePath converts a decoded key back to the raw path bytes.
func restorePath(key string) (string, error) {
	if !strings.ContainsRune(key, pathMarker) {
		return key, nil
	}

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); {
		if key[i] != pathMarker {
			b.WriteByte(key[i])
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(key[i+1:])
		if r < 0x80 || r > 0xff {
			return "", errors.New("path contains NUL")
		}
		b.WriteByte(byte(r))
		i += 1 + size
	}
	return b.String(), nil
}
