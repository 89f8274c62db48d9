package router

// Problem codes returned alongside RFC 7807 responses.
const (
	ErrInternalCode        = "INTERNAL_ERROR"
	ErrBadRequestCode      = "BAD_REQUEST"
	ErrPayloadTooLargeCode = "PAYLOAD_TOO_LARGE"
)

// Error messages
const (
	ErrMsgAppStateNotInitialized = "application state not initialized"
)
