// Package shutdown coordinates process termination.
//
// Components register named hooks as they start; on SIGINT, SIGTERM or an
// explicit Trigger the hooks run in reverse order under one deadline:
//
//	h := shutdown.NewHandler(10*time.Second, shutdown.WithLogger(log))
//	h.OnShutdown("resp-server", srv.Shutdown)
//	return h.Wait(ctx)
package shutdown
