package constants

const (
	// Shared REST/WS transport-agnostic errors
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeMediaInvalid    = "MEDIA_INVALID"

	// Signup / reset pipeline
	ErrCodeOtpExpired    = "OTP_EXPIRED"
	ErrCodeOtpInvalid    = "OTP_INVALID"
	ErrCodeOtpCorrupt    = "OTP_CORRUPT"
	ErrCodeEmailFailed   = "EMAIL_DELIVERY_FAILED"
	ErrCodePasswordMatch = "PASSWORD_MISMATCH"
	ErrCodePasswordShort = "PASSWORD_TOO_SHORT"

	// Echo lifecycle
	ErrCodeNotYetEligible = "NOT_YET_ELIGIBLE"
	ErrCodeMissingMedia   = "MISSING_MEDIA"
)
