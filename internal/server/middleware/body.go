package middleware

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/information-sharing-networks/ecommerce-api/internal/api"
)

type jsonBodyKey struct{}

// ParseJSONBody returns a middleware that parses JSON request bodies.
//
// Only requests that carry a body with the application/json media type are
// parsed; everything else passes through untouched. gzip and deflate bodies are
// inflated first and utf-16/utf-32 bodies are transcoded to utf-8. Parsed bodies
// are stored in the request context (see JSONBody and DecodeJSONBody) and r.Body
// is replaced with a reader over the decoded utf-8 bytes.
//
// Requests are rejected with:
//   - 413 when the (inflated) body is larger than maxBytes
//   - 415 for an unknown charset or content encoding
//   - 400 when the body is not valid JSON, is corrupt compressed data, or its top level value is not an object or array
//   - 500 when reading the body fails for any other reason
//
// This runs before RequestLogger, so rejections are logged through slog.Default
// rather than the request-scoped logger. logger.InitLogger makes the server's
// handler the default.
func ParseJSONBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || !isJSONRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			charset, err := requestCharset(r)
			if err != nil {
				api.RespondWithErrorResponse(w, r, err)
				return
			}

			contentEncoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))

			// Content-Length is only the body size when the body is not compressed
			if (contentEncoding == "" || contentEncoding == "identity") && r.ContentLength > maxBytes {
				err := api.NewRequestTooLargeError(
					fmt.Sprintf("Request body size (%d bytes) exceeds maximum allowed size (%d bytes)", r.ContentLength, maxBytes),
				)
				api.RespondWithErrorResponse(w, r, err)
				return
			}

			body, err := contentDecoder(r.Body, contentEncoding)
			if err != nil {
				api.RespondWithErrorResponse(w, r, err)
				return
			}
			defer func() { _ = body.Close() }()

			// Content-Length can be missing or wrong, so enforce the limit while reading too
			data, err := io.ReadAll(http.MaxBytesReader(w, body, maxBytes))
			if err != nil {
				api.RespondWithErrorResponse(w, r, mapReadError(err, maxBytes))
				return
			}

			data, err = toUTF8(data, charset)
			if err != nil {
				api.RespondWithErrorResponse(w, r, err)
				return
			}

			value, err := parseStrictJSON(data)
			if err != nil {
				api.RespondWithErrorResponse(w, r, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(data))
			r.ContentLength = int64(len(data))
			r.Header.Del("Content-Encoding")
			ctx := context.WithValue(r.Context(), jsonBodyKey{}, &parsedBody{raw: data, value: value})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type parsedBody struct {
	raw   json.RawMessage
	value any
}

// JSONBody returns the body parsed by ParseJSONBody: a map[string]any for JSON
// objects or a []any for arrays. Requests without a JSON body yield an empty object.
func JSONBody(r *http.Request) any {
	if body, ok := r.Context().Value(jsonBodyKey{}).(*parsedBody); ok && body.value != nil {
		return body.value
	}
	return map[string]any{}
}

// DecodeJSONBody decodes the body parsed by ParseJSONBody into dst.
// Requests without a JSON body decode as an empty object.
func DecodeJSONBody(r *http.Request, dst any) error {
	raw := json.RawMessage("{}")
	if body, ok := r.Context().Value(jsonBodyKey{}).(*parsedBody); ok && len(body.raw) > 0 {
		raw = body.raw
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return api.WrapMalformedRequestError(err, "request body does not match the expected shape")
	}
	return nil
}

func isJSONRequest(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// requestCharset returns the lower-cased charset parameter, defaulting to utf-8.
// Only utf-* charsets are accepted.
func requestCharset(r *http.Request) (string, error) {
	_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	charset := strings.ToLower(params["charset"])
	if charset == "" {
		return "utf-8", nil
	}
	if !strings.HasPrefix(charset, "utf-") && charset != "utf8" {
		return "", api.NewUnsupportedMediaTypeError(fmt.Sprintf("unsupported charset %q", strings.ToUpper(charset)))
	}
	return charset, nil
}

// contentDecoder wraps body in a decompressor for the given Content-Encoding
func contentDecoder(body io.ReadCloser, encoding string) (io.ReadCloser, error) {
	switch encoding {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, api.WrapMalformedRequestError(err, "invalid gzip body")
		}
		return zr, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, api.WrapMalformedRequestError(err, "invalid deflate body")
		}
		return zr, nil
	default:
		return nil, api.NewUnsupportedMediaTypeError(fmt.Sprintf("unsupported content encoding %q", encoding))
	}
}

// mapReadError classifies an error from reading the (possibly inflated) body
func mapReadError(err error, maxBytes int64) error {
	var maxBytesErr *http.MaxBytesError
	var corrupt flate.CorruptInputError
	switch {
	case errors.As(err, &maxBytesErr):
		return api.NewRequestTooLargeError(
			fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxBytes),
		)
	case errors.Is(err, gzip.ErrChecksum), errors.Is(err, gzip.ErrHeader),
		errors.Is(err, zlib.ErrChecksum), errors.Is(err, zlib.ErrHeader),
		errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &corrupt):
		return api.WrapMalformedRequestError(err, "invalid compressed body")
	default:
		return api.WrapInternalError(err, "failed to read request body")
	}
}

// toUTF8 transcodes data from charset to utf-8 and drops a leading byte order mark
func toUTF8(data []byte, charset string) ([]byte, error) {
	var enc encoding.Encoding
	switch charset {
	case "utf-8", "utf8":
	case "utf-16":
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "utf-16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf-16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "utf-32":
		enc = utf32.UTF32(utf32.BigEndian, utf32.UseBOM)
	case "utf-32le":
		enc = utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	case "utf-32be":
		enc = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	default:
		return nil, api.NewUnsupportedMediaTypeError(fmt.Sprintf("unsupported charset %q", strings.ToUpper(charset)))
	}

	if enc != nil {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, api.WrapMalformedRequestError(err, "body is not valid "+strings.ToUpper(charset))
		}
		data = decoded
	}
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
}

// parseStrictJSON accepts only objects and arrays at the top level.
// An empty body parses as an empty object.
func parseStrictJSON(data []byte) (any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, api.NewMalformedRequestError("JSON body must be an object or an array")
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, api.WrapMalformedRequestError(err, "invalid JSON body")
	}
	return value, nil
}
