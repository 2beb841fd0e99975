// Package component defines lifecycle-managed parts of the notify service
// (subscription registry, Postgres listener, Redis relay, HTTP server) and
// an ordered registry that starts and stops them.
//
// Components start in registration order and stop in reverse, so register
// dependencies first.
package component
