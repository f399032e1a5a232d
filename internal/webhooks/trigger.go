package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

var (
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrMalformedBody = errors.New("malformed request body")
)

// isoMillis matches the capture timestamp format the execution engine expects.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// TriggerData is the normalized form of an inbound webhook call stored as an
// execution's input. Body is a string so the stored shape is uniform across
// content types; it is null for GET and HEAD.
type TriggerData struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers"`
	Body      *string           `json:"body"`
	Query     map[string]string `json:"query"`
	Timestamp string            `json:"timestamp"`
}

// NewTriggerData normalizes r. It also returns the decoded body bytes so the
// caller can verify a signature over them. maxBody bounds the decoded size; a
// value <= 0 means no limit.
func NewTriggerData(r *http.Request, path string, at time.Time, maxBody int64) (*TriggerData, []byte, error) {
	td := &TriggerData{
		Method:    r.Method,
		Path:      path,
		Headers:   flattenHeaders(r.Header),
		Query:     flattenValues(r.URL.Query()),
		Timestamp: at.UTC().Format(isoMillis),
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return td, nil, nil
	}

	raw, err := readBody(r, maxBody)
	if err != nil {
		return nil, nil, err
	}

	body := normalizeBody(r.Header.Get("Content-Type"), raw)
	td.Body = &body

	return td, raw, nil
}

func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	var src io.Reader = r.Body
	if strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		defer zr.Close()
		src = zr
	}

	if maxBody > 0 {
		src = io.LimitReader(src, maxBody+1)
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrBodyTooLarge
		}
		if errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return nil, fmt.Errorf("reading webhook body: %w", err)
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return nil, ErrBodyTooLarge
	}

	return raw, nil
}

// normalizeBody renders raw as the string stored in TriggerData.Body. JSON is
// compacted, form bodies become a JSON object of first values, and anything
// else (including JSON that does not parse) is kept as text.
func normalizeBody(contentType string, raw []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err == nil {
			if encoded, err := json.Marshal(flattenValues(values)); err == nil {
				return string(encoded)
			}
		}
	}

	return string(raw)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[http.CanonicalHeaderKey(name)] = strings.Join(values, ", ")
	}
	return out
}

func flattenValues(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for name, values := range v {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
