// Package server provides the HTTP surface of the stopwatch service.
//
// Available endpoints:
//   - GET  /                          : Readout page, live-updated from the event stream
//   - GET  /health                    : Liveness check (always returns 200)
//   - GET  /ready                     : Readiness check (503 once the stopwatch is closed)
//   - GET  /version                   : Build information
//   - GET  /metrics                   : Prometheus metrics endpoint
//   - GET  /api/stopwatch             : Current state, elapsed time and formatted readout
//   - POST /api/stopwatch/start       : Start ticking
//   - POST /api/stopwatch/pause       : Pause ticking
//   - POST /api/stopwatch/resume      : Resume ticking
//   - POST /api/stopwatch/reset       : Zero the elapsed time
//   - GET  /api/stopwatch/events      : Server-Sent Events stream of change notifications
//
// The server is configured with sensible timeout defaults:
//   - Read timeout: 15 seconds
//   - Write timeout: 15 seconds (cleared for the event stream)
//   - Idle timeout: 60 seconds
//
// Example usage:
//
//	srv := server.NewServer(cfg, sw, log)
//
//	serverErrors := make(chan error, 1)
//	go func() {
//		serverErrors <- srv.Start()
//	}()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	if err := srv.Shutdown(ctx); err != nil {
//		log.Printf("Error during shutdown: %v", err)
//	}
package server
