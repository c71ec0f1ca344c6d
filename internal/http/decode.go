package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

var (
	errInvalidUTF8  = errors.New("body is not valid UTF-8")
	errTrailingData = errors.New("invalid character after top-level value")
)

// decodePayload turns a received body into the value for shape. JSON that
// does not parse falls back to the text form of the body.
func decodePayload(shape Shape, contentType string, body []byte) (any, error) {
	switch shape {
	case ShapeJSON:
		if v, err := decodeJSON(body); err == nil {
			return v, nil
		}
		return decodeText(contentType, body)
	case ShapeText:
		return decodeText(contentType, body)
	case ShapeBytes:
		return body, nil
	}
	return nil, invalidValue("unsupported response shape: %q", string(shape))
}

// decodeJSON decodes one JSON document, keeping numbers as json.Number so
// integers beyond 2^53 survive. Trailing data is an error, as with
// json.Unmarshal.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

// decodeText decodes body using the charset named by contentType. Without a
// charset, valid UTF-8 is returned as is and anything else goes through
// charset detection.
func decodeText(contentType string, body []byte) (string, error) {
	name := charsetParam(contentType)
	if name == "" {
		if utf8.Valid(body) {
			return string(body), nil
		}
		detected, err := chardet.NewTextDetector().DetectBest(body)
		if err != nil {
			return "", &DecodeError{Shape: ShapeText, Err: fmt.Errorf("detect charset: %w", err)}
		}
		name = detected.Charset
	}

	if isUTF8(name) {
		if !utf8.Valid(body) {
			return "", &DecodeError{Shape: ShapeText, Err: errInvalidUTF8}
		}
		return string(body), nil
	}

	enc, canonical := charset.Lookup(name)
	if enc == nil {
		return "", &DecodeError{Shape: ShapeText, Err: fmt.Errorf("unknown charset %q", name)}
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", &DecodeError{Shape: ShapeText, Err: fmt.Errorf("charset %s: %w", canonical, err)}
	}
	return string(out), nil
}

func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
