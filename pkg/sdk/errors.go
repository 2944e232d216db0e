package offerd

import "github.com/coursedesk/offerd/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrAlreadyExists       = domain.ErrAlreadyExists
	ErrValidation          = domain.ErrValidation
	ErrCouponInvalid       = domain.ErrCouponInvalid
	ErrDiscountOutOfRange  = domain.ErrDiscountOutOfRange
	ErrDiscountUnavailable = domain.ErrDiscountUnavailable
	ErrCourseUnavailable   = domain.ErrCourseUnavailable
	ErrInvalidTransition   = domain.ErrInvalidTransition
	ErrConflict            = domain.ErrConflict
)
