package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GGmuzem/formula-engine/internal/auth"
	"github.com/GGmuzem/formula-engine/internal/calculate"
	"github.com/GGmuzem/formula-engine/internal/engine"
	"github.com/GGmuzem/formula-engine/pkg/models"
)

// errBadRequest - тело запроса не удалось разобрать
var errBadRequest = errors.New("malformed request body")

// classify возвращает HTTP-статус и тело ответа для ошибки
func classify(err error) (int, models.ErrorResponse) {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound, models.ErrorResponse{Detail: "not found", Kind: "not_found", Error: err.Error()}
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, engine.ErrUnauthenticated):
		return http.StatusUnauthorized, models.ErrorResponse{Detail: "unauthorized", Kind: "unauthorized"}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, models.ErrorResponse{
			Detail: calculate.CategoryInvalidData.Message,
			Kind:   "invalid_request",
			Error:  err.Error(),
		}
	case engine.IsCalcError(err):
		c := calculate.CategoryOf(err)
		return c.Status, models.ErrorResponse{Detail: c.Message, Kind: calculate.KindOf(err).String(), Error: err.Error()}
	default:
		return http.StatusInternalServerError, models.ErrorResponse{
			Detail: calculate.CategoryInternal.Message,
			Kind:   calculate.CategoryInternal.Code,
		}
	}
}

// grpcError переводит ошибку движка в статус gRPC
func grpcError(err error) error {
	code, body := classify(err)
	var c codes.Code
	switch code {
	case http.StatusNotFound:
		c = codes.NotFound
	case http.StatusUnauthorized:
		c = codes.Unauthenticated
	case http.StatusBadRequest:
		c = codes.InvalidArgument
	case http.StatusUnprocessableEntity:
		c = codes.FailedPrecondition
	default:
		c = codes.Internal
	}
	msg := body.Detail
	if body.Error != "" {
		msg += ": " + body.Error
	}
	return status.Error(c, msg)
}
