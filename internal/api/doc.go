// Package api exposes the gateway over HTTP: the form-encoded dispatch
// endpoint plus agent listing, health and metrics routes.
package api
