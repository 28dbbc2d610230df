// Package common contains shared constants and sentinel errors used across
// vaultsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ErrorDomain tags structured error details produced by the server.
const ErrorDomain = "vaultsync"
