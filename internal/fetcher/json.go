package fetcher

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON document. Numbers decode as json.Number so
// identifiers and counts keep their exact text.
func DecodeJSON[T any](data []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return out, eris.Wrap(err, "json: decode document")
	}
	return out, nil
}
