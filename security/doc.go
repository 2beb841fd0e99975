// Package security builds client TLS settings for the service's outbound
// connections: the Redis relay and the Postgres change feed.
//
//	tlsCfg, err := security.TLSConfig{
//	    Enabled:  true,
//	    CAFile:   "/etc/notify/ca.pem",
//	    CertFile: "/etc/notify/client.pem",
//	    KeyFile:  "/etc/notify/client-key.pem",
//	}.Build()
//
// Build returns nil when TLS is disabled, so the result can be assigned to
// a driver's TLS field unconditionally.
package security
