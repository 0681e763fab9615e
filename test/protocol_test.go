package test

import (
	"testing"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocol_BootstrapReplica(t *testing.T) {
	cluster := CreateCluster(1, time.Second, t)
	defer cluster.Off()
}

// A single replica cluster answers its own request, a quorum
// of one finalizes immediately.
func TestProtocol_SingleReplicaDiscoversItself(t *testing.T) {
	cluster := CreateCluster(1, time.Second, t)
	defer cluster.Off()

	cluster.Replicas[0].RequestLatestView()
	view, ok := cluster.WaitInstall(0, 3*time.Second)
	require.True(t, ok)
	assert.Len(t, view.QuorumMembers(), 1)
}

// A replica that does not know the current view polls the
// cluster and installs the view a quorum agrees on.
func TestProtocol_DiscoverViewAcrossCluster(t *testing.T) {
	cluster := CreateCluster(4, time.Second, t)
	defer cluster.Off()

	cluster.Replicas[0].RequestLatestView()
	view, ok := cluster.WaitInstall(0, 3*time.Second)
	require.True(t, ok)
	assert.Len(t, view.QuorumMembers(), 4)

	installed := cluster.Orderings[0].Installed()
	require.Len(t, installed, 1)
	for _, ordering := range cluster.Orderings[1:] {
		assert.Empty(t, ordering.Installed(), "only the requester installs")
	}
}

// One replica holding a divergent view cannot stop the
// requester from installing the view the quorum reports.
func TestProtocol_MinorityDivergenceIsOutvoted(t *testing.T) {
	cluster := CreateCluster(4, time.Second, t)
	defer cluster.Off()

	cluster.Orderings[3].SetView(TestView{Members: []types.NodeId{0, 1, 2, 3, 4, 5, 6}})

	cluster.Replicas[0].RequestLatestView()
	view, ok := cluster.WaitInstall(0, 3*time.Second)
	require.True(t, ok)
	assert.Len(t, view.QuorumMembers(), 4, "the quorum view wins")
}

// With most responders cut off no quorum forms, the round
// times out and re runs, and once the fabric heals the view
// is finally installed.
func TestProtocol_TimeoutReRunsUntilQuorumHeals(t *testing.T) {
	cluster := CreateCluster(4, 200*time.Millisecond, t)
	defer cluster.Off()

	cluster.Router.Block(2)
	cluster.Router.Block(3)

	cluster.Replicas[0].RequestLatestView()

	// Two responders cannot form a quorum of three, the
	// round keeps timing out.
	select {
	case <-cluster.Orderings[0].Installs:
		t.Fatal("no quorum should form while peers are blocked")
	case <-time.After(700 * time.Millisecond):
	}

	cluster.Router.Unblock(2)
	cluster.Router.Unblock(3)

	view, ok := cluster.WaitInstall(0, 3*time.Second)
	require.True(t, ok)
	assert.Len(t, view.QuorumMembers(), 4)
}

// Two concurrent requesters both converge on the same view.
func TestProtocol_ConcurrentRequesters(t *testing.T) {
	cluster := CreateCluster(4, time.Second, t)
	defer cluster.Off()

	cluster.Replicas[0].RequestLatestView()
	cluster.Replicas[1].RequestLatestView()

	first, ok := cluster.WaitInstall(0, 3*time.Second)
	require.True(t, ok)
	second, ok := cluster.WaitInstall(1, 3*time.Second)
	require.True(t, ok)

	assert.Equal(t, first, second)
}
