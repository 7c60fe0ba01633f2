package http

// This file implements the builder used for every JSON response of the API.

import (
	"encoding/json"
	"net/http"

	"tutordash/internal/apperr"
)

const contentTypeJSON = "application/json; charset=utf-8"

// errorBody is the envelope of every failed API call.
type errorBody struct {
	Error     *apperr.Error `json:"error"`
	RequestID string        `json:"request_id,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets a value to be encoded on Write.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	b.raw = nil
	return b
}

// Raw sets an already encoded body, e.g. one taken from the response cache.
func (b *JSONResponseBuilder) Raw(p []byte) *JSONResponseBuilder {
	b.raw = p
	b.body = nil
	return b
}

// Cache marks whether the body came from the response cache.
func (b *JSONResponseBuilder) Cache(hit bool) *JSONResponseBuilder {
	if hit {
		return b.Header("X-Cache", "HIT")
	}
	return b.Header("X-Cache", "MISS")
}

// Write encodes and sends the response. An encoding failure is reported as
// a 500 before anything is written.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	payload := b.raw
	if payload == nil {
		var err error
		payload, err = encodeJSON(b.body)
		if err != nil {
			http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, http.StatusInternalServerError)
			return err
		}
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(b.statusCode)
	_, err := w.Write(payload)
	return err
}

func encodeJSON(v any) ([]byte, error) {
	p, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(p, '\n'), nil
}

// ErrorResponse maps err onto its apperr status and envelope. Internal
// errors never leak their cause to the client.
func ErrorResponse(err error, requestID string) *JSONResponseBuilder {
	ae := apperr.FromError(err)
	public := &apperr.Error{Code: ae.Code, Message: ae.Message}
	if ae.Code == apperr.ErrInternal.Code {
		public.Message = apperr.ErrInternal.Message
	}
	return NewJSONResponse().
		Status(ae.Status).
		Body(errorBody{Error: public, RequestID: requestID})
}

// RateLimitedResponse is sent when /api/refresh is called too often.
func RateLimitedResponse(requestID string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorBody{
			Error:     &apperr.Error{Code: "RATE_LIMITED", Message: "too many refresh requests, try again later"},
			RequestID: requestID,
		})
}
