// Package discovery defines the error taxonomy shared by the registry, the
// daemon bootstrap protocol, and the HTTP client.
//
// Errors are tagged with sentinel markers so callers classify failures with
// errors.Is instead of string matching: validation failures surface
// synchronously, not-found is usually not an error at all (null/404 on the
// wire), and startup/transport failures propagate to the caller unmodified.
package discovery
