// Package notifications holds the durable notification model, its storage
// backends and the manager that persists first and then hands events to the
// realtime broker as a best-effort delivery hint.
//
// The store is the source of truth: a notification is always persisted
// before any delivery attempt, so a missed push is repaired by the client's
// next poll cycle. Delivery failures are logged and never fail the send.
//
// Three Storage implementations are provided: MemoryStorage for development
// and tests, MongoStorage and PostgresStorage for production deployments.
package notifications
