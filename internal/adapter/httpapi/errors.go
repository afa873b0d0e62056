package httpapi

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront-order-service/internal/domain"
)

type errorBody struct {
	Message string `json:"message"`
}

func validationErr(msg string) error {
	return errors.Wrap(domain.ErrValidation, msg)
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:      http.StatusBadRequest,
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindInvalidState:    http.StatusConflict,
	domain.KindPaymentGateway:  http.StatusBadGateway,
	domain.KindInternal:        http.StatusInternalServerError,
}

// writeError доменные ошибки отдаются клиенту текстом, внутренние только логируются.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := kindStatus[kind]
	log := s.log.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
	}).WithError(err)

	msg := err.Error()
	switch kind {
	case domain.KindInternal:
		log.Error("request failed")
		msg = "internal server error"
	case domain.KindPaymentGateway:
		log.Warn("payment gateway failure")
	case domain.KindForbidden:
		log.Debug("request rejected")
		msg = domain.ErrForbidden.Error()
	default:
		log.Debug("request rejected")
	}
	writeJSON(w, status, errorBody{Message: msg})
}
