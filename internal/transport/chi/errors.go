package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/coursedesk/offerd/internal/domain"
	domcoupon "github.com/coursedesk/offerd/internal/domain/coupon"
	domdiscount "github.com/coursedesk/offerd/internal/domain/discount"
	"github.com/coursedesk/offerd/internal/logger"
)

// ErrorCode is the machine-readable error code in API responses.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeNotFound            ErrorCode = "not_found"
	CodeAlreadyExists       ErrorCode = "already_exists"
	CodeCouponInvalid       ErrorCode = "coupon_invalid"
	CodeDiscountOutOfRange  ErrorCode = "discount_out_of_range"
	CodeDiscountUnavailable ErrorCode = "discount_unavailable"
	CodeCourseUnavailable   ErrorCode = "course_unavailable"
	CodeInvalidTransition   ErrorCode = "invalid_transition"
	CodeConflict            ErrorCode = "conflict"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	validationHandler,
	couponRejectionHandler,
	rangeHandler,
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
	sentinelHandler(domain.ErrCouponInvalid, http.StatusUnprocessableEntity, CodeCouponInvalid),
	sentinelHandler(domain.ErrDiscountUnavailable, http.StatusUnprocessableEntity, CodeDiscountUnavailable),
	sentinelHandler(domain.ErrCourseUnavailable, http.StatusUnprocessableEntity, CodeCourseUnavailable),
	sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition),
	sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeConflict),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// validationHandler reports the rejected field.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeValidationFailed,
		Message: ve.Error(),
		Field:   ve.Field,
	})
	return true
}

// couponRejectionHandler adds the machine-readable rejection reason.
func couponRejectionHandler(w http.ResponseWriter, err error) bool {
	var re *domcoupon.RejectionError
	if !errors.As(err, &re) {
		return false
	}
	status := http.StatusUnprocessableEntity
	if re.Reason == domcoupon.ReasonNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, ErrorResponse{
		Code:    CodeCouponInvalid,
		Message: re.Error(),
		Reason:  string(re.Reason),
	})
	return true
}

// rangeHandler exposes the allowed range of a rejected discount value.
func rangeHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrDiscountOutOfRange) {
		return false
	}
	msg := domain.ErrDiscountOutOfRange.Error()
	var re *domdiscount.RangeError
	if errors.As(err, &re) {
		msg = re.Error()
	}
	writeError(w, http.StatusBadRequest, CodeDiscountOutOfRange, msg)
	return true
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
