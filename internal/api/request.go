package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodySize bounds request bodies. Only the login route reads one.
const MaxBodySize = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON reads exactly one JSON object from the request into dst. Errors
// are safe to echo back to the caller.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

func describeDecodeError(err error) error {
	var (
		syntax   *json.SyntaxError
		typed    *json.UnmarshalTypeError
		tooLarge *http.MaxBytesError
	)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	if errors.As(err, &syntax) {
		return fmt.Errorf("malformed JSON at position %d", syntax.Offset)
	}
	if errors.As(err, &typed) {
		return fmt.Errorf("invalid value for field %q: expected %s", typed.Field, typed.Type)
	}
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body exceeds maximum size of %d bytes", MaxBodySize)
	}
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Errorf("unknown field %s", field)
	}
	return errors.New("invalid JSON in request body")
}
