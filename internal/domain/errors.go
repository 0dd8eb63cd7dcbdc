package domain

import "errors"

// Validation errors surfaced synchronously by the login flow
var (
	ErrCountryUnsupported = errors.New("country is not supported")
	ErrCountryAtCapacity  = errors.New("country is at full capacity")
	ErrPhoneExists        = errors.New("phone number already submitted")
)

// Flow and connection errors
var (
	ErrStaleLoginFlow = errors.New("no active login flow for user")
	ErrNotConnected   = errors.New("client is not connected")
	ErrUnauthorized   = errors.New("session is not authorized")
)

// Handshake errors wrapped into tagged submit outcomes
var (
	ErrCodeInvalid       = errors.New("confirmation code is invalid")
	ErrCodeExpired       = errors.New("confirmation code has expired")
	ErrTwoFactorRequired = errors.New("two-factor authentication is enabled")
)

// ErrProxyMalformed is returned when a proxy pool entry cannot be parsed
var ErrProxyMalformed = errors.New("malformed proxy entry")

// ErrBucketLost signals that a cached audit bucket no longer exists remotely
var ErrBucketLost = errors.New("audit bucket no longer exists")

// ErrRecordNotFound is returned by stores when a record is absent
var ErrRecordNotFound = errors.New("record not found")
