package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

const (
	ContentTypeCBOR        = "application/cbor"
	ContentTypeOctetStream = "application/octet-stream"
)
