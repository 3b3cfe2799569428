// Package common contains shared constants and sentinel errors used across
// AuthGate components.
package common

// SessionTokenHeaderName is the gRPC metadata key used to carry the signed
// session token on datagram-style (unary) requests.
const SessionTokenHeaderName = "session_token"
