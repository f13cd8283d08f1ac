// ABOUTME: Package documentation for the permission broker
// ABOUTME: Describes the request lifecycle and grant cache semantics

// Package permission mediates agent tool use through human approval.
//
// # Request lifecycle
//
// A request is Pending from creation until it is Resolved. There is no
// other terminal state: a request that times out is denied and counts as
// resolved for cleanup purposes.
//
//	allowed := broker.Request(ctx, sessionID, permission.ToolShell,
//		"Run `go test ./...`", "", "go test ./...", 0)
//
// The calling turn blocks until a human answers (via Resolve, typically
// driven by a permission_response WebSocket message) or the timeout
// elapses. Only the issuing turn blocks; other sessions and other requests
// proceed independently.
//
// # Grant cache
//
// Resolutions with scope "session" or "always" are cached per session under
// the key tool:path (tool:* when no path was given). A specific-path entry
// takes precedence over the tool's wildcard entry, so granting write:* deny
// and write:/a.txt allow makes a check for /a.txt return allow. Scope
// "once" never populates the cache. ClearSession empties a session's cache
// without touching pending requests.
//
// Repeated identical requests within a turn therefore prompt the human at
// most once: the first resolution short-circuits the rest via Check.
package permission
