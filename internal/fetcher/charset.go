package fetcher

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is assumed for text responses that declare no charset.
const DefaultEncoding = "utf-8"

// isText reports whether the content type describes a textual body.
func isText(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") ||
		strings.HasSuffix(mediaType, "json") ||
		strings.HasSuffix(mediaType, "xml") ||
		strings.HasSuffix(mediaType, "javascript")
}

// normalizeText converts a text body to UTF-8. A charset declared in the
// Content-Type wins; otherwise fallback is used. Non-text bodies are returned
// as-is.
func normalizeText(body []byte, contentType, fallback string) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !isText(mediaType) {
		return body, nil
	}

	charset := params["charset"]
	if charset == "" {
		charset = fallback
	}
	if charset == "" {
		charset = DefaultEncoding
	}
	return decodeCharset(body, charset)
}

func decodeCharset(body []byte, charset string) ([]byte, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", charset)
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		return body, nil
	}

	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s body", charset)
	}
	return out, nil
}
