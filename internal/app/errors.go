/**
 * @description
 * Error kinds surfaced by the billing engine. External-call failures are
 * typed values here so batch loops can classify per-item outcomes instead of
 * letting raw provider errors cross batch boundaries.
 */
package app

import "errors"

var (
	// ErrGatewayUnavailable is a network/auth failure talking to the payment
	// gateway. It never mutates the ledger; retrying is the caller's decision.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrProviderUnavailable is the messaging-provider equivalent.
	ErrProviderUnavailable = errors.New("messaging provider unavailable")

	// ErrAlreadyTerminal reports a transition applied to a charge that has
	// already settled. Informational no-op, not a failure.
	ErrAlreadyTerminal = errors.New("charge already in a terminal status")

	// ErrValidation rejects bad input before any external call is made.
	ErrValidation = errors.New("validation failed")

	// ErrProviderSendFailure is a failed message delivery; it is recorded in
	// the message log and the batch continues.
	ErrProviderSendFailure = errors.New("provider send failed")

	// ErrInstanceUnrecoverable means the connector exhausted its escalation
	// ladder, including the one hard-recreate attempt.
	ErrInstanceUnrecoverable = errors.New("messaging instance unrecoverable")

	// ErrInstanceNotConnected aborts a notification sweep whose channel is
	// not open before the loop starts.
	ErrInstanceNotConnected = errors.New("messaging instance not connected")

	// ErrSweepAlreadyRunning reports that another invocation holds the sweep
	// lease; the caller should simply not run.
	ErrSweepAlreadyRunning = errors.New("sweep already running")
)
