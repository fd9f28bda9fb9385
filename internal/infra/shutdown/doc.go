// Package shutdown provides graceful shutdown for memkv.
//
// A Handler waits for SIGINT/SIGTERM (or an explicit Trigger) and runs the
// registered hooks in reverse order under a shared timeout. A ReloadHandler
// maps SIGHUP to a configuration reload.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("redis server", srv.Shutdown)
//	return h.Wait()
package shutdown
