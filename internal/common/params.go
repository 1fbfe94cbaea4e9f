package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const maxParamsBody = 1 << 20

// Params holds request parameters collected from the query string, a form body
// or a flat JSON object body. Later sources override earlier ones.
type Params map[string]string

func ReadParams(r *http.Request) (Params, error) {
	p := Params{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if r.Body == nil {
			return p, nil
		}
		body := http.MaxBytesReader(nil, r.Body, maxParamsBody)
		var raw map[string]json.RawMessage
		dec := json.NewDecoder(body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %v: %w", err, ErrBadRequest)
		}
		for key, value := range raw {
			s, err := jsonScalar(value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %v: %w", key, err, ErrBadRequest)
			}
			p[key] = s
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form payload: %v: %w", err, ErrBadRequest)
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				p[key] = values[0]
			}
		}
	}
	return p, nil
}

func jsonScalar(value json.RawMessage) (string, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return "", nil
	}
	switch value[0] {
	case '"':
		var s string
		err := json.Unmarshal(value, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("expected a scalar value")
	default:
		return string(value), nil
	}
}

// String returns the named parameter, failing with ErrBadRequest when it is absent or blank.
func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing parameter %q: %w", name, ErrBadRequest)
	}
	return v, nil
}

// Int64 parses the named parameter as a base-10 integer.
func (p Params) Int64(name string) (int64, error) {
	v, err := p.String(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer: %w", name, ErrBadRequest)
	}
	return n, nil
}

// Has reports whether the named parameter was sent with a non-blank value.
func (p Params) Has(name string) bool {
	return strings.TrimSpace(p[name]) != ""
}
