// Package access is the client for an access controller: session login,
// full-state bootstrap fetches, relay commands, generic API requests and the
// realtime event stream.
//
// # Session
//
// Login posts credentials and keeps the TOKEN cookie and CSRF header the
// controller returns. The token is a JWT; its exp claim decides when the
// next request logs in again. The signature is not verified: the token is
// only ever sent back to the controller that issued it.
//
// # Endpoints
//
//	POST /api/auth/login
//	GET  /proxy/access/api/v2/bootstrap
//	PUT  /proxy/access/api/v2/device/{id}/relay_unlock
//	PUT  /proxy/access/api/v2/device/{id}/configs
//	PUT  /proxy/access/api/v2/location/{id}/unlock
//	WS   /proxy/access/api/v2/ws/notification
//
// API responses are wrapped as {"code":"SUCCESS","msg":"","data":...}.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package access
