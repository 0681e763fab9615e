package types

import "fmt"

// A monotonically incrementing counter used to correlate
// responses with the request that originated them. Wrap
// around is not expected within a protocol lifetime.
type SeqNo uint32

// Returns the sequence number that follows the current one.
func (s SeqNo) Next() SeqNo {
	return s + 1
}

// Identifies a single peer on the system. Identifiers are
// handed out by the host stack and are never reused.
type NodeId uint32

// The content hash attached by the transport to every
// inbound envelope. Two responses carrying equal content
// produce equal digests, so the protocol uses the digest
// as the canonical identity of a view when tallying.
type Digest [32]byte

func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:4])
}

// The kind of view transfer message being transported.
type MessageKind uint8

const (
	// Asks the receiving peer for its current view.
	RequestView MessageKind = iota

	// Carries the responding peer current view back
	// to the requester.
	ViewResponse
)

// The view transfer protocol message. The sequence field is
// always the originator sequence number, a responder echoes
// the sequence from the request it is answering.
type ViewTransferMessage struct {
	Sequence SeqNo
	Kind     MessageKind

	// Only present when Kind is ViewResponse.
	View View
}

// Creates a new message for the given sequence and kind.
func NewViewTransferMessage(seq SeqNo, kind MessageKind, view View) ViewTransferMessage {
	return ViewTransferMessage{
		Sequence: seq,
		Kind:     kind,
		View:     view,
	}
}

// Implements the Orderable interface.
func (m ViewTransferMessage) SequenceNumber() SeqNo {
	return m.Sequence
}

// Envelope metadata produced by the transport for every
// inbound message. The digest is computed over the signed
// payload bytes before the message reaches the protocol.
type Header struct {
	From   NodeId
	Digest Digest
}

// A transport produced pair of header and message, the only
// shape in which the protocol ever sees inbound traffic.
type StoredMessage struct {
	Header  Header
	Message ViewTransferMessage
}

// Anything holding a protocol sequence number.
type Orderable interface {
	SequenceNumber() SeqNo
}
