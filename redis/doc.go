// Package redis wraps go-redis for the notify service: a pooled client
// with logging, pub/sub helpers used by the cross-instance relay, and a
// lifecycle component with health checks.
//
//	cfg := redis.Config{Enabled: true, Addr: "localhost:6379"}
//	comp := redis.NewComponent(cfg, log)
//	app.RegisterComponent(comp)
//	// after Start:
//	comp.Client().Publish(ctx, "notify.events", payload)
package redis
