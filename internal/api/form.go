package api

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	mediaURLEncoded = "application/x-www-form-urlencoded"
	mediaMultipart  = "multipart/form-data"
)

// readBodyField 读取表单字段 Body。urlencoded 请求体按宽松规则解码，
// 非法的 %xx 保留为原文；其它类型的请求体不携带表单字段。
func (s *Server) readBodyField(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case mediaMultipart:
		if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil {
			return "", err
		}
		return r.PostFormValue(BodyField), nil
	case mediaURLEncoded:
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		form := decodeForm(string(raw))
		r.PostForm = form
		return form.Get(BodyField), nil
	default:
		return "", nil
	}
}

// decodeForm 解析 urlencoded 文本。同名字段保留全部取值，Get 返回第一个。
func decodeForm(raw string) url.Values {
	form := url.Values{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		form.Add(unescapeLenient(key), unescapeLenient(value))
	}
	return form
}

// unescapeLenient 把 '+' 解码为空格并解码合法的 %xx，其余字节原样保留。
func unescapeLenient(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
