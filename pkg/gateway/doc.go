// Package gateway authenticates incoming realtime connections and enrolls
// them into their rooms before any event can race past them.
//
// A handshake carries at minimum a user id; the tenant id defaults to the
// fallback tenant when absent. Credentials arrive either as an explicit
// payload or as a signed token parsed by a Verifier. Rejection is fatal to
// the connection being established, never to the broker.
//
// Room membership is computed by RoomsFor, a pure function independent of
// any transport, so isolation properties can be tested without a live
// connection.
package gateway
