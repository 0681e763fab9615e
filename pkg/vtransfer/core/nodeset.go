package core

import (
	"sort"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

// An ordered set of peer identifiers. The set only ever
// grows, peers discovered through conflicting views are added
// and nothing is ever removed.
type nodeSet struct {
	members map[types.NodeId]struct{}
}

func newNodeSet(initial []types.NodeId) *nodeSet {
	s := &nodeSet{members: make(map[types.NodeId]struct{}, len(initial))}
	for _, node := range initial {
		s.members[node] = struct{}{}
	}
	return s
}

func (s *nodeSet) Insert(node types.NodeId) {
	s.members[node] = struct{}{}
}

func (s *nodeSet) Len() int {
	return len(s.members)
}

func (s *nodeSet) Contains(node types.NodeId) bool {
	_, ok := s.members[node]
	return ok
}

// The members in ascending order.
func (s *nodeSet) Sorted() []types.NodeId {
	nodes := make([]types.NodeId, 0, len(s.members))
	for node := range s.members {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i] < nodes[j]
	})
	return nodes
}
