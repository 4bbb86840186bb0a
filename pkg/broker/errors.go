package broker

import "errors"

var (
	// ErrBrokerClosed is returned when operations are attempted on a closed broker.
	ErrBrokerClosed = errors.New("broker: closed")

	// ErrNilPayload is returned when an emit is attempted without a payload.
	ErrNilPayload = errors.New("broker: nil payload")
)
