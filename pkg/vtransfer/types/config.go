package types

import "time"

// Registered with the timeout driver so round timeouts can be
// attributed back to the view transfer protocol.
const TimeoutModuleName = "ATLAS_VIEW_TRANSFER"

// Configuration for a single view transfer replica. The
// timeout duration is the only recognized protocol option,
// everything else configures the surrounding plumbing.
type TransferConfig struct {
	// Name of the local replica, used to address its
	// transport exchange.
	Name NodeId

	// Duration after which an in flight round is considered
	// failed and the protocol re runs.
	TimeoutDuration time.Duration

	// Peers known at bootstrap.
	InitialNodes []NodeId

	// Codec for the host concrete view type.
	Codec ViewCodec

	// Signer used by the transport when emitting messages.
	Signer Signer

	// Replica logger.
	Logger Logger
}

// Signs outbound payloads. The engine itself never touches
// signatures, the ReliableTransport attaches them on send and
// does not check them on receipt.
type Signer interface {
	Sign(payload []byte) []byte
}
