// Package http provides HTTP server and handler implementations.
//
// This file implements the builder used by every handler to write JSON
// responses, and the mapping from engine error kinds to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"livrocaixa/internal/core"
	"livrocaixa/internal/csvimport"
	"livrocaixa/internal/services"
)

// Error kinds reported in the "kind" field of an error body.
const (
	KindValidation     = "validation"
	KindSchemaMismatch = "schema_mismatch"
	KindNotFound       = "not_found"
	KindConflict       = "referential_conflict"
	KindSessionExpired = "session_expired"
	KindForbidden      = "forbidden"
	KindStore          = "store"
	KindInternal       = "internal"
)

const (
	MsgForbidden    = "Acesso restrito a administradores."
	MsgNotFound     = "Registro não encontrado."
	MsgInternal     = "Erro interno. Tente novamente."
	MsgBadRequest   = "Formato da requisição inválido."
	MsgRateLimited  = "Muitas requisições. Tente novamente em instantes."
	MsgStoreFailure = "Falha ao acessar o banco de dados."
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`

	Missing []string `json:"missing,omitempty"`

	// Set when a batched write stopped part way.
	BatchIndex int `json:"batch_index,omitempty"`
	BatchTotal int `json:"batch_total,omitempty"`
	Committed  int `json:"committed,omitempty"`
}

// ErrorResponse maps err to its status code and body. The order matters:
// validation errors may wrap ErrNotFound, and conflict errors wrap
// ErrReferenced.
func ErrorResponse(err error) *ResponseBuilder {
	var (
		validation *core.ValidationError
		schema     *core.SchemaMismatchError
		conflict   *core.ReferentialConflictError
		storeErr   *core.StoreError
	)
	b := NewResponse()
	switch {
	case errors.As(err, &schema):
		return b.Status(http.StatusUnprocessableEntity).JSON(ErrorBody{Error: schema.Error(), Kind: KindSchemaMismatch, Missing: schema.Missing})
	case errors.As(err, &validation):
		return b.Status(http.StatusUnprocessableEntity).JSON(ErrorBody{Error: validation.Reason, Kind: KindValidation, Field: validation.Field})
	case errors.Is(err, csvimport.ErrRowLocked),
		errors.Is(err, core.ErrCategoryKindMismatch),
		errors.Is(err, core.ErrInactive),
		errors.Is(err, core.ErrEmptyFile):
		return b.Status(http.StatusUnprocessableEntity).JSON(ErrorBody{Error: errorMessage(err), Kind: KindValidation})
	case errors.As(err, &conflict):
		return b.Status(http.StatusConflict).JSON(ErrorBody{Error: conflict.Error(), Kind: KindConflict})
	case errors.Is(err, core.ErrSessionExpired), errors.Is(err, core.ErrUnauthenticated):
		return b.Status(http.StatusUnauthorized).
			Header("WWW-Authenticate", `Bearer realm="livrocaixa"`).
			JSON(ErrorBody{Error: services.MsgSessionExpired, Kind: KindSessionExpired})
	case errors.Is(err, core.ErrForbidden):
		return b.Status(http.StatusForbidden).JSON(ErrorBody{Error: MsgForbidden, Kind: KindForbidden})
	case errors.Is(err, core.ErrNotFound):
		return b.Status(http.StatusNotFound).JSON(ErrorBody{Error: MsgNotFound, Kind: KindNotFound})
	case errors.As(err, &storeErr):
		return b.Status(http.StatusBadGateway).JSON(ErrorBody{
			Error:      storeErr.Error(),
			Kind:       KindStore,
			BatchIndex: storeErr.BatchIndex,
			BatchTotal: storeErr.BatchTotal,
			Committed:  storeErr.Committed,
		})
	}
	return b.Status(http.StatusInternalServerError).JSON(ErrorBody{Error: MsgInternal, Kind: KindInternal})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrCategoryKindMismatch):
		return services.MsgKindMismatch
	case errors.Is(err, core.ErrInactive):
		return services.MsgInactive
	}
	return err.Error()
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return NewResponse().Status(http.StatusBadRequest).JSON(ErrorBody{Error: message, Kind: KindValidation})
}

// UnprocessableEntityError creates a 422 error response for one field.
func UnprocessableEntityError(field, message string) *ResponseBuilder {
	return NewResponse().Status(http.StatusUnprocessableEntity).JSON(ErrorBody{Error: message, Kind: KindValidation, Field: field})
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
