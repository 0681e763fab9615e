package types

// A view is the opaque identifier of the current BFT
// configuration, supplied by the ordering protocol. The
// protocol requires a single observable capability from it,
// the ordered set of peers that form its quorum. Equality
// between views is never checked structurally, the digest
// attached by the transport is the canonical identity.
type View interface {
	// The members that form the view quorum, in order.
	QuorumMembers() []NodeId
}

// The contract the outer ordering protocol must satisfy so
// the transfer protocol can discover and install views.
type OrderingProtocol interface {
	// The current view held by the ordering protocol.
	View() View

	// Commits a discovered view into the ordering protocol.
	InstallView(view View)

	// The Byzantine quorum threshold for n responders.
	QuorumForN(n int) int

	// The Byzantine tolerance for n responders.
	FForN(n int) int
}

// Encodes and decodes the host concrete view type, so the
// transport can move opaque views across the wire without
// knowing their shape.
type ViewCodec interface {
	Marshal(view View) ([]byte, error)
	Unmarshal(data []byte) (View, error)
}

// The outcome of feeding a message into the protocol.
type VTResult uint8

const (
	// The message did not concern an in flight round.
	VTransferNotNeeded VTResult = iota

	// A round is in flight and still collecting, or
	// ProcessMessage answered a view request.
	VTransferRunning

	// A view was finalized and installed.
	VTransferFinished
)

func (r VTResult) String() string {
	switch r {
	case VTransferNotNeeded:
		return "not-needed"
	case VTransferRunning:
		return "running"
	case VTransferFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// The outcome of delivering a round timeout to the protocol.
type TimeoutResult uint8

const (
	// The timed out round was re run with a fresh broadcast.
	RunProtocolAgain TimeoutResult = iota

	// No round was in flight, nothing to do.
	TimeoutNotNeeded
)

// What the protocol wants from its owning task next.
type Action uint8

const (
	// Wait for an inbound message from the transport.
	ReceiveMsg Action = iota

	// Execute a locally queued message.
	Execute

	// Nothing to do.
	NoOp
)
