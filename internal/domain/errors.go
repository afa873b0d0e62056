package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Общие доменные ошибки
var (
	ErrValidation      = validationError("invalid data")
	ErrNotFound        = notFoundError("not found")
	ErrProductNotFound = productNotFoundError("product not found")
	ErrForbidden       = forbiddenError("not authorized")
	ErrUnauthenticated = unauthenticatedError("not authenticated")
	ErrInvalidState    = invalidStateError("invalid order state")
	ErrPaymentGateway  = paymentGatewayError("payment gateway error")
)

type validationError string

func (e validationError) Error() string { return string(e) }

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type productNotFoundError string

func (e productNotFoundError) Error() string { return string(e) }

func (e productNotFoundError) Is(target error) bool { return target == ErrNotFound }

type forbiddenError string

func (e forbiddenError) Error() string { return string(e) }

type unauthenticatedError string

func (e unauthenticatedError) Error() string { return string(e) }

type invalidStateError string

func (e invalidStateError) Error() string { return string(e) }

type paymentGatewayError string

func (e paymentGatewayError) Error() string { return string(e) }

// ProductNotFoundError перечисляет идентификаторы, которых нет в каталоге.
type ProductNotFoundError struct {
	IDs []string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", strings.Join(e.IDs, ", "))
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound || target == ErrNotFound
}

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidState
	KindPaymentGateway
)

// KindOf классифицирует ошибку по доменной таксономии.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrPaymentGateway):
		return KindPaymentGateway
	}
	return KindInternal
}
