// Package bootstrap runs a service: it validates the typed config, sets up
// the global logger, starts registered components in order, waits for
// SIGINT/SIGTERM and shuts everything down within a graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(sseComponent)
//	app.RegisterComponent(httpServer)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
