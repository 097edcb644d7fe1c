// Package server assembles the HTTP surface of the upload backend: routing,
// request identity, security headers, rate limiting, and graceful lifecycle.
package server
