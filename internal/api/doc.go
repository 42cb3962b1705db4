// Package api implements the HTTP surface of the bridge.
//
// This package provides:
//   - the OAuth account-linking pages and token endpoint (/auth/*)
//   - the smart-home REST endpoints the platform calls (/v1.0/*)
//   - a health probe and a WebSocket event stream (/api/*)
//   - the middleware stack (request ID, logging, recovery, CORS, bearer auth)
//
// # Error responses
//
// Failures are reported with a structured {status, code, message} body.
// The device query and action endpoints are the exception: once the
// request is authenticated and well formed they always answer 200 and
// report failures per device or per capability.
//
// # Event stream
//
// GET /api/ws?token=<access token> upgrades to a WebSocket. Clients
// subscribe to the device.state_changed and skill.callback channels and
// only receive events of the linked user.
package api
