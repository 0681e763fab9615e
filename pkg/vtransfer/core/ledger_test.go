package core

import (
	"testing"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

func digestOf(b byte) types.Digest {
	var d types.Digest
	d[0] = b
	return d
}

func TestLedger_AppendAndCount(t *testing.T) {
	ledger := NewVoteLedger()
	x := digestOf(0xAA)

	for node := types.NodeId(1); node <= 3; node++ {
		outcome := ledger.Append(ReceivedView{Node: node, Digest: x})
		if outcome != VoteAccepted {
			t.Errorf("expected vote from %d accepted, got %d", node, outcome)
		}
	}

	if ledger.BucketLen(x) != 3 {
		t.Errorf("expected 3 votes, found %d", ledger.BucketLen(x))
	}

	if ledger.Size() != 3 {
		t.Errorf("expected size 3, found %d", ledger.Size())
	}
}

func TestLedger_DuplicateVoteIsNotTallied(t *testing.T) {
	ledger := NewVoteLedger()
	x := digestOf(0xAA)

	if ledger.Append(ReceivedView{Node: 1, Digest: x}) != VoteAccepted {
		t.Error("first vote should be accepted")
	}
	if ledger.Append(ReceivedView{Node: 1, Digest: x}) != VoteDuplicated {
		t.Error("second vote from same node should be a duplicate")
	}
	if ledger.BucketLen(x) != 1 {
		t.Errorf("duplicate must not be tallied, found %d", ledger.BucketLen(x))
	}
}

func TestLedger_ConflictingVoteIsNotTallied(t *testing.T) {
	ledger := NewVoteLedger()
	x := digestOf(0xAA)
	y := digestOf(0xBB)

	if ledger.Append(ReceivedView{Node: 1, Digest: x}) != VoteAccepted {
		t.Error("first vote should be accepted")
	}
	if ledger.Append(ReceivedView{Node: 1, Digest: y}) != VoteConflicting {
		t.Error("vote for a second digest should be a conflict")
	}
	if ledger.BucketLen(y) != 0 {
		t.Errorf("conflicting vote must not create a bucket, found %d", ledger.BucketLen(y))
	}
	if ledger.Size() != 1 {
		t.Errorf("expected size 1, found %d", ledger.Size())
	}
}

func TestLedger_RemoveReturnsBucket(t *testing.T) {
	ledger := NewVoteLedger()
	x := digestOf(0xAA)

	ledger.Append(ReceivedView{Node: 1, Digest: x})
	ledger.Append(ReceivedView{Node: 2, Digest: x})

	bucket, ok := ledger.Remove(x)
	if !ok {
		t.Fatal("expected bucket to exist")
	}
	if len(bucket) != 2 {
		t.Errorf("expected 2 entries, found %d", len(bucket))
	}
	if _, ok := ledger.Remove(x); ok {
		t.Error("bucket should be gone after remove")
	}
}

func TestLedger_CountsIterateEveryBucket(t *testing.T) {
	ledger := NewVoteLedger()
	x := digestOf(0xAA)
	y := digestOf(0xBB)

	ledger.Append(ReceivedView{Node: 1, Digest: x})
	ledger.Append(ReceivedView{Node: 2, Digest: x})
	ledger.Append(ReceivedView{Node: 3, Digest: y})

	counts := ledger.Counts()
	if len(counts) != 2 {
		t.Fatalf("expected 2 buckets, found %d", len(counts))
	}
	found := make(map[types.Digest]int)
	for _, count := range counts {
		found[count.Digest] = count.Count
	}
	if found[x] != 2 || found[y] != 1 {
		t.Errorf("unexpected counts %v", found)
	}
}
