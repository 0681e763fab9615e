package fuzzy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
	"github.com/jabolina/go-vtransfer/test"
	"go.uber.org/goleak"
)

// Every replica of the cluster discovers the view in turn.
// No failure is injected over the fabric, so each requester
// must finalize on the first round.
func Test_SequentialDiscovery(t *testing.T) {
	cluster := test.CreateCluster(4, time.Second, t)
	defer func() {
		if !test.WaitThisOrTimeout(cluster.Off, 30*time.Second) {
			t.Error("failed shutdown cluster")
		}
		goleak.VerifyNone(t)
	}()

	for index := range cluster.Replicas {
		cluster.Replicas[index].RequestLatestView()
		if _, ok := cluster.WaitInstall(index, 5*time.Second); !ok {
			break
		}
	}
}

// A larger cluster with random requesters and a random
// blocked minority. The blocked peers can never stop a quorum
// from forming, so every request eventually finalizes.
func Test_DiscoveryUnderMinorityBlock(t *testing.T) {
	cluster := test.CreateCluster(7, 300*time.Millisecond, t)
	defer func() {
		if !test.WaitThisOrTimeout(cluster.Off, 30*time.Second) {
			t.Error("failed shutdown cluster")
		}
		goleak.VerifyNone(t)
	}()

	random := rand.New(rand.NewSource(0x5eed))
	for round := 0; round < 5; round++ {
		blocked := types.NodeId(1 + random.Intn(6))
		cluster.Router.Block(blocked)

		requester := random.Intn(7)
		for requester == int(blocked) {
			requester = random.Intn(7)
		}

		cluster.Replicas[requester].RequestLatestView()
		if _, ok := cluster.WaitInstall(requester, 10*time.Second); !ok {
			break
		}
		cluster.Router.Unblock(blocked)
	}
}
