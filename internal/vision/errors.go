package vision

import "errors"

// Common errors returned by vision engines.
var (
	// ErrThrottled is returned when the engine rejects a request because of
	// rate limits or quota. It is transient.
	ErrThrottled = errors.New("vision engine throttled the request")

	// ErrTransient is returned for outages, timeouts, and malformed engine
	// replies that may resolve on retry.
	ErrTransient = errors.New("transient vision engine failure")

	// ErrInvalidImage is returned when the engine refuses the image itself:
	// unsupported format, too large, corrupt, or blocked by safety filters.
	// It is permanent.
	ErrInvalidImage = errors.New("image rejected by vision engine")

	// ErrInvalidConfig is returned when an engine is constructed with invalid settings.
	ErrInvalidConfig = errors.New("invalid vision engine configuration")
)

// IsPermanent reports whether err means the image can never be labeled.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidImage)
}
