package core

import (
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

// A single tallied response, holding the reporting peer, the
// digest the transport attached to its envelope and the view
// it carried.
type ReceivedView struct {
	Node   types.NodeId
	Digest types.Digest
	View   types.View
}

// Outcome of offering a response to the ledger.
type AppendOutcome uint8

const (
	// The response was tallied.
	VoteAccepted AppendOutcome = iota

	// The peer already voted for this digest in this round.
	VoteDuplicated

	// The peer already voted for a different digest in this
	// round, a protocol violation.
	VoteConflicting
)

// Tally of the in flight round. Buckets responses by the
// envelope digest and remembers which peer voted for what, so
// a peer contributes at most one entry per round.
type VoteLedger struct {
	buckets map[types.Digest][]ReceivedView

	// Digest each peer voted for in this round.
	voted map[types.NodeId]types.Digest
}

func NewVoteLedger() *VoteLedger {
	return &VoteLedger{
		buckets: make(map[types.Digest][]ReceivedView),
		voted:   make(map[types.NodeId]types.Digest),
	}
}

// Insert or append the received view on the bucket keyed by
// its digest, creating the bucket if absent. A second vote
// from the same peer in the same round is never tallied, the
// outcome tells the caller which rule rejected it.
func (l *VoteLedger) Append(received ReceivedView) AppendOutcome {
	if previous, ok := l.voted[received.Node]; ok {
		if previous == received.Digest {
			return VoteDuplicated
		}
		return VoteConflicting
	}

	l.voted[received.Node] = received.Digest
	l.buckets[received.Digest] = append(l.buckets[received.Digest], received)
	return VoteAccepted
}

// How many votes the bucket for the given digest holds.
func (l *VoteLedger) BucketLen(digest types.Digest) int {
	return len(l.buckets[digest])
}

// Remove the bucket for the given digest, returning its
// contents.
func (l *VoteLedger) Remove(digest types.Digest) ([]ReceivedView, bool) {
	bucket, ok := l.buckets[digest]
	if ok {
		delete(l.buckets, digest)
	}
	return bucket, ok
}

// Read only iteration over the ledger, yielding each digest
// with its vote count.
func (l *VoteLedger) Counts() []DigestCount {
	counts := make([]DigestCount, 0, len(l.buckets))
	for digest, bucket := range l.buckets {
		counts = append(counts, DigestCount{Digest: digest, Count: len(bucket)})
	}
	return counts
}

// A first entry of the bucket for the given digest, used when
// growing the known peers from conflicting candidates.
func (l *VoteLedger) First(digest types.Digest) (ReceivedView, bool) {
	bucket := l.buckets[digest]
	if len(bucket) == 0 {
		return ReceivedView{}, false
	}
	return bucket[0], true
}

// Total votes tallied across every bucket.
func (l *VoteLedger) Size() int {
	total := 0
	for _, bucket := range l.buckets {
		total += len(bucket)
	}
	return total
}

// A digest paired with its bucket length.
type DigestCount struct {
	Digest types.Digest
	Count  int
}
