// Package client reconciles the two notification sources a session sees:
// the realtime push stream (best effort, possibly absent) and the periodic
// poll of the listing endpoint. Both feed the same idempotent, id-keyed
// merge, so duplicates collapse and ordering between the two paths does not
// matter. A transient push gap is invisible as long as the next poll cycle
// repairs it.
//
// The package also carries the toast queue: a transient, session-local
// projection of notifications for display, each item with its own
// cancellable expiry timer.
//
// Typical wiring:
//
//	engine := client.NewEngine(fetcher,
//		client.WithToastQueue(client.NewToastQueue()),
//		client.WithPollInterval(30*time.Second),
//	)
//	engine.Start(ctx)
//	defer engine.Stop()
//
// Stop cancels the polling task and all pending toast timers; an in-flight
// poll result is discarded rather than applied to a deactivated engine.
package client
