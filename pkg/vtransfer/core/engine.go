package core

import (
	"sort"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/metrics"
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

// State of the round currently in flight. A nil value means
// the protocol is idling with no outstanding request.
type requestedState struct {
	// Size of the known peers set at the moment the request
	// was broadcast. A snapshot, later peer growth does not
	// move the quorum of a running round.
	expectedResponders int

	// Every response tallied for this round, including ones
	// for competing digests. A repeated or conflicting vote
	// from a peer that already voted is not counted.
	responsesReceived int

	// The votes, bucketed by envelope digest.
	ledger *VoteLedger
}

// Internal outcome of tallying a response.
type tallyOutcome uint8

const (
	tallyIgnored tallyOutcome = iota
	tallyNoneFound
	tallyReRun
	tallyViewReceived
)

// The view transfer protocol state machine. A replica that
// joins the system without knowing the current view polls its
// peers through this protocol and only accepts a view that a
// Byzantine quorum corroborates.
//
// The engine is not internally synchronized, a single owning
// task must pump poll, receive and ProcessMessage.
type SimpleViewTransfer struct {
	// Sequence of the round currently (or last) in flight.
	currentSeqNo types.SeqNo

	// The peers we currently know.
	knownNodes *nodeSet

	// Round in flight, nil while idling.
	requested *requestedState

	// Transport used to reach the known peers.
	transport Transport

	// Engine logger.
	log types.Logger
}

// Creates the engine in the idle state, knowing the given
// initial peers.
func NewViewTransfer(transport Transport, log types.Logger, initial []types.NodeId) *SimpleViewTransfer {
	return &SimpleViewTransfer{
		currentSeqNo: 0,
		knownNodes:   newNodeSet(initial),
		requested:    nil,
		transport:    transport,
		log:          log,
	}
}

// The engine is driven by incoming messages only.
func (vt *SimpleViewTransfer) Poll() types.Action {
	return types.ReceiveMsg
}

// Implements the Orderable interface.
func (vt *SimpleViewTransfer) SequenceNumber() types.SeqNo {
	return vt.currentSeqNo
}

// The peers the engine currently knows, in order.
func (vt *SimpleViewTransfer) KnownNodes() []types.NodeId {
	return vt.knownNodes.Sorted()
}

// Whether a round is currently in flight.
func (vt *SimpleViewTransfer) Requested() bool {
	return vt.requested != nil
}

func (vt *SimpleViewTransfer) nextSeq() {
	vt.currentSeqNo = vt.currentSeqNo.Next()
}

// Begin a round of the protocol, broadcasting a signed view
// request to every peer currently known. A round already in
// flight is abandoned, its ledger discarded. Each round
// carries a fresh sequence so responses addressed to an
// abandoned round are dropped by the sequence check.
//
// The broadcast is best effort, transport failures are logged
// and swallowed.
func (vt *SimpleViewTransfer) RequestLatestView(op types.OrderingProtocol) error {
	vt.nextSeq()
	vt.requested = &requestedState{
		expectedResponders: vt.knownNodes.Len(),
		responsesReceived:  0,
		ledger:             NewVoteLedger(),
	}

	message := types.NewViewTransferMessage(vt.currentSeqNo, types.RequestView, nil)
	if err := vt.transport.BroadcastSigned(message, vt.knownNodes.Sorted()); err != nil {
		vt.log.Errorf("failed broadcasting view request seq %d. %v", vt.currentSeqNo, err)
	}
	return nil
}

// Handle a message delivered while the host considers the
// engine out of context. A view request is answered with our
// current view regardless of our own state, a response is
// never tallied here. The engine state is left untouched.
func (vt *SimpleViewTransfer) HandleOffContextMessage(op types.OrderingProtocol, stored types.StoredMessage) (types.VTResult, error) {
	switch stored.Message.Kind {
	case types.RequestView:
		vt.replyWithView(op, stored.Header.From, stored.Message.Sequence)
	case types.ViewResponse:
		vt.log.Infof("ignoring off context view response from %d seq %d", stored.Header.From, stored.Message.Sequence)
	}
	return types.VTransferNotNeeded, nil
}

// Feed an inbound message into the state machine. A view
// request is answered with our current view. A view response
// is tallied against the round in flight, finalizing when a
// quorum agrees on a single digest, re running when more than
// one candidate holds more than f votes.
func (vt *SimpleViewTransfer) ProcessMessage(op types.OrderingProtocol, stored types.StoredMessage) (types.VTResult, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveProcessMessageTime(time.Since(start))
	}()

	message := stored.Message
	if message.Kind == types.RequestView {
		vt.replyWithView(op, stored.Header.From, message.Sequence)
		return types.VTransferRunning, nil
	}

	if message.Sequence != vt.currentSeqNo {
		vt.log.Infof("dropping view response from %d with seq %d, current is %d", stored.Header.From, message.Sequence, vt.currentSeqNo)
		return types.VTransferNotNeeded, nil
	}

	if vt.requested == nil {
		vt.log.Infof("received view response from %d seq %d while idle", stored.Header.From, message.Sequence)
		return types.VTransferNotNeeded, nil
	}

	outcome, view := vt.tally(op, stored.Header, message.View)
	switch outcome {
	case tallyViewReceived:
		op.InstallView(view)
		vt.requested = nil
		return types.VTransferFinished, nil
	case tallyReRun:
		if err := vt.RequestLatestView(op); err != nil {
			return types.VTransferRunning, err
		}
		return types.VTransferRunning, nil
	case tallyNoneFound:
		return types.VTransferRunning, nil
	default:
		return types.VTransferNotNeeded, nil
	}
}

// The tally. Buckets the response by its envelope digest and
// decides between keeping collecting, finalizing on a quorum
// agreeing bucket or re running because distinct views each
// gathered more than f votes.
func (vt *SimpleViewTransfer) tally(op types.OrderingProtocol, header types.Header, view types.View) (tallyOutcome, types.View) {
	state := vt.requested
	received := ReceivedView{
		Node:   header.From,
		Digest: header.Digest,
		View:   view,
	}

	switch state.ledger.Append(received) {
	case VoteDuplicated:
		vt.log.Warnf("peer %d voted twice for digest %s in round %d", header.From, header.Digest, vt.currentSeqNo)
		return tallyIgnored, nil
	case VoteConflicting:
		vt.log.Warnf("peer %d voted for conflicting digests in round %d", header.From, vt.currentSeqNo)
		return tallyIgnored, nil
	}

	state.responsesReceived++

	quorum := op.QuorumForN(state.expectedResponders)
	if state.ledger.BucketLen(header.Digest) < quorum {
		return tallyNoneFound, nil
	}

	f := op.FForN(state.expectedResponders)
	candidates := make([]DigestCount, 0)
	for _, count := range state.ledger.Counts() {
		if count.Count > f {
			candidates = append(candidates, count)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})

	switch {
	case len(candidates) == 0:
		vt.log.Warnf("received %d views on round %d but no candidate has more than f %d votes", state.responsesReceived, vt.currentSeqNo, f)
		return tallyNoneFound, nil
	case len(candidates) == 1:
		top := candidates[0]
		if top.Count < quorum {
			vt.log.Warnf("received %d views on round %d but no candidate reached quorum %d", state.responsesReceived, vt.currentSeqNo, quorum)
			return tallyNoneFound, nil
		}
		bucket, _ := state.ledger.Remove(top.Digest)
		return tallyViewReceived, bucket[len(bucket)-1].View
	default:
		// Distinct views each hold more than f votes, so at
		// least one correct node backs each of them. Collect
		// every peer those views name and probe the wider set.
		for _, candidate := range candidates {
			first, ok := state.ledger.First(candidate.Digest)
			if !ok {
				continue
			}
			for _, node := range first.View.QuorumMembers() {
				vt.knownNodes.Insert(node)
			}
		}
		return tallyReRun, nil
	}
}

// Deliver a round timeout. A round in flight is re run with
// the current known peers, the stale ledger is discarded. A
// timeout arriving while idle is a no op.
func (vt *SimpleViewTransfer) HandleTimeout(op types.OrderingProtocol) (types.TimeoutResult, error) {
	if vt.requested == nil {
		return types.TimeoutNotNeeded, nil
	}

	vt.log.Warnf("round %d timed out with %d of %d responses, re running", vt.currentSeqNo, vt.requested.responsesReceived, vt.requested.expectedResponders)
	if err := vt.RequestLatestView(op); err != nil {
		return types.RunProtocolAgain, err
	}
	return types.RunProtocolAgain, nil
}

// Answer a view request with our current view, echoing the
// requester sequence. Best effort, failures are logged and
// swallowed.
func (vt *SimpleViewTransfer) replyWithView(op types.OrderingProtocol, to types.NodeId, seq types.SeqNo) {
	response := types.NewViewTransferMessage(seq, types.ViewResponse, op.View())
	if err := vt.transport.SendSigned(response, to, false); err != nil {
		vt.log.Errorf("failed responding view request from %d. %v", to, err)
	}
}
