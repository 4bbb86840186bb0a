package client

import "errors"

var (
	// ErrTransport indicates a pull or mutation request failed. The local
	// view is left untouched and the operation can be retried.
	ErrTransport = errors.New("client: transport failure")

	// ErrPartialBulkFailure indicates some entries of a mark-all-read batch
	// failed remotely. Succeeded entries stay read; failed ones keep their
	// optimistic local state.
	ErrPartialBulkFailure = errors.New("client: some notifications could not be marked as read")

	// ErrUnexpectedStatus is returned when the listing endpoint responds
	// with a non-success status code.
	ErrUnexpectedStatus = errors.New("client: unexpected response status")
)
