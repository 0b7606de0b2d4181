// Package httpserver runs the API's http.Server with graceful shutdown and
// serves health probes.
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithOnShutdown(stream.Stop),
//	)
//	err := srv.Run(ctx, router)
//
// Run returns when ctx is cancelled. Stream handlers should listen for the
// shutdown callback since http.Server.Shutdown waits for them otherwise.
package httpserver
