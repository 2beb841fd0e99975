// Package server provides the HTTP server of the notify service: a Gin
// engine served over HTTP/1.1 and h2c, wrapped in transport middleware and
// managed as a component.
//
// Built-in middleware (server/middleware): recovery, request id, CORS,
// body size limit and request logging around the whole handler, plus Gin
// route middleware for token auth and internal keys.
//
// Built-in endpoints (server/endpoint): /health aggregates component health
// and /info reports build information.
package server
