// Package httputil provides shared HTTP response/request helpers for the API
// handlers: JSON envelopes, body decoding, and mapping service errors to
// status codes.
package httputil
