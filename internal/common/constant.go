// Package common contains shared constants and sentinel errors used across
// assetsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound backend requests.
const AccessTokenHeaderName = "access_token"

// DefaultColor is the swatch stored for records whose colour could not be
// computed.
const DefaultColor = "#000000"

// DefaultExpirationHours is the lifetime requested for uploaded assets when
// the caller does not set one.
const DefaultExpirationHours = 24.0

// FallbackContentType is used when a filename's MIME type cannot be resolved.
const FallbackContentType = "application/octet-stream"
