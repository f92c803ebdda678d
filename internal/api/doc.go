// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It adapts HTTP clients to the image service:
// uploads enter the labeling pipeline and queries read its results.
package api
