// Package broker holds live realtime connections, organizes them into rooms
// and multicasts push events to every connection in a room.
//
// Rooms are named multicast groups. The two room families used by the
// application are user rooms ("user:<id>", every session of one user) and
// tenant rooms ("tenant:<id>", every session of every user of a tenant).
// Emitting targets a room, never an individual connection.
//
// The broker is a delivery hint, not a source of truth: an emit to an empty
// room is a logged no-op and nothing is queued for later. Durability is the
// job of the notification store; the polling path repairs any gap.
//
// Basic usage:
//
//	b := broker.New(broker.WithBufferSize(64))
//	defer b.Close()
//
//	conn, _ := b.Connect("u1", "t1", broker.UserRoom("u1"), broker.TenantRoom("t1"))
//	_ = b.EmitToUser(ctx, "u1", broker.HealthAlert{
//		Title:    "Fever",
//		Message:  "Animal 42",
//		Priority: broker.PriorityHigh,
//		AnimalID: "42",
//	})
//
//	env := <-conn.Events()
//
// Within one room, events emitted in call order are observed by every
// connection in the same relative order. The broker never deduplicates;
// duplicate emits produce duplicate deliveries and reconciliation is the
// client's responsibility.
package broker
