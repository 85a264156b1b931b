package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// ragEntry 是一个已编码的代理输出。
type ragEntry struct {
	name  string
	value []byte
}

// encodeValue 将代理输出编码为紧凑 JSON，不转义 HTML 字符。
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeCombined 按代理顺序拼接 JSON 对象，分隔符为 ": " 与 ", "。
func encodeCombined(entries []ragEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range entries {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := encodeValue(entry.name)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", entry.name, err)
		}
		buf.Write(spaceAndEscape(key))
		buf.WriteString(": ")
		buf.Write(spaceAndEscape(entry.value))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// spaceAndEscape 在字符串外的 ':' 与 ',' 后补空格，并把非 ASCII 字符转义为 \uXXXX。
func spaceAndEscape(compact []byte) []byte {
	out := make([]byte, 0, len(compact)+len(compact)/8)
	inString, escaped := false, false
	for i := 0; i < len(compact); {
		c := compact[i]
		if !inString {
			out = append(out, c)
			switch c {
			case '"':
				inString = true
			case ':', ',':
				out = append(out, ' ')
			}
			i++
			continue
		}

		switch {
		case escaped:
			escaped = false
			out = append(out, c)
			i++
		case c == '\\':
			escaped = true
			out = append(out, c)
			i++
		case c == '"':
			inString = false
			out = append(out, c)
			i++
		case c < utf8.RuneSelf:
			out = append(out, c)
			i++
		default:
			r, size := utf8.DecodeRune(compact[i:])
			out = appendEscapedRune(out, r)
			i += size
		}
	}
	return out
}

func appendEscapedRune(out []byte, r rune) []byte {
	if r > 0xFFFF {
		hi, lo := utf16.EncodeRune(r)
		out = appendUnicodeEscape(out, hi)
		return appendUnicodeEscape(out, lo)
	}
	return appendUnicodeEscape(out, r)
}

func appendUnicodeEscape(out []byte, r rune) []byte {
	return append(out, '\\', 'u',
		hexDigits[(r>>12)&0xF],
		hexDigits[(r>>8)&0xF],
		hexDigits[(r>>4)&0xF],
		hexDigits[r&0xF],
	)
}
