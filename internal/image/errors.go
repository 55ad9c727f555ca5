package image

import (
	"net/http"

	"github.com/zeebo/errs"
)

var (
	// ErrNotFound signals that a key is absent from the object store or the database.
	ErrNotFound = errs.Class("not found")
	// ErrAuth signals a credential or permission failure against a backing service.
	ErrAuth = errs.Class("access denied")
	// ErrInvalidRequest signals missing or malformed client input.
	ErrInvalidRequest = errs.Class("invalid request")
	// ErrInfrastructure signals a connection, timeout or unexpected backend failure.
	ErrInfrastructure = errs.Class("infrastructure")
	// ErrMalformedMessage signals an undecodable queue payload.
	ErrMalformedMessage = errs.Class("malformed message")
)

// HTTPStatus maps an error from this service to the status code returned to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case ErrInfrastructure.Has(err):
		return http.StatusInternalServerError
	case ErrInvalidRequest.Has(err), ErrMalformedMessage.Has(err):
		return http.StatusBadRequest
	case ErrAuth.Has(err):
		return http.StatusForbidden
	case ErrNotFound.Has(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
