// Package apiclient is the HTTP client the CLI uses to drive a running
// daemon. Non-2xx answers decode into *Error, which unwraps to the matching
// services sentinel so callers can branch with errors.Is.
package apiclient
