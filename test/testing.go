package test

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer"
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/definition"
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

// Concrete view used across the tests. The member list is the
// whole observable surface the protocol needs.
type TestView struct {
	Members []types.NodeId `json:"members"`
}

func (v TestView) QuorumMembers() []types.NodeId {
	return v.Members
}

// Codec for the test view.
type TestViewCodec struct{}

func (TestViewCodec) Marshal(view types.View) ([]byte, error) {
	concrete, ok := view.(TestView)
	if !ok {
		return nil, fmt.Errorf("unexpected view type %T", view)
	}
	return json.Marshal(concrete)
}

func (TestViewCodec) Unmarshal(data []byte) (types.View, error) {
	var view TestView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, err
	}
	return view, nil
}

// Ordering protocol fake, holding a current view and
// recording installs. Announces every install on a channel so
// tests can wait without polling.
type TestOrdering struct {
	mutex     sync.Mutex
	current   types.View
	installed []types.View
	Installs  chan types.View
}

func NewTestOrdering(current types.View) *TestOrdering {
	return &TestOrdering{
		current:  current,
		Installs: make(chan types.View, 16),
	}
}

func (o *TestOrdering) View() types.View {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.current
}

func (o *TestOrdering) InstallView(view types.View) {
	o.mutex.Lock()
	o.current = view
	o.installed = append(o.installed, view)
	o.mutex.Unlock()
	o.Installs <- view
}

// Replace the view this ordering protocol reports.
func (o *TestOrdering) SetView(view types.View) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.current = view
}

func (o *TestOrdering) Installed() []types.View {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]types.View{}, o.installed...)
}

func (o *TestOrdering) QuorumForN(n int) int {
	f := o.FForN(n)
	return int(math.Ceil((float64(n) + float64(f) + 1) / 2.0))
}

func (o *TestOrdering) FForN(n int) int {
	return (n - 1) / 3
}

// In memory transport fabric connecting every replica of a
// test cluster. Delivery computes the payload digest the same
// way the wire transport does, so equal views produce equal
// digests on every receiver.
type MemoryRouter struct {
	mutex sync.Mutex
	peers map[types.NodeId]*MemoryTransport

	// Peers currently cut off from the fabric.
	blocked map[types.NodeId]bool
}

func NewMemoryRouter() *MemoryRouter {
	return &MemoryRouter{
		peers:   make(map[types.NodeId]*MemoryTransport),
		blocked: make(map[types.NodeId]bool),
	}
}

// Connect a replica to the fabric.
func (r *MemoryRouter) Connect(node types.NodeId, codec types.ViewCodec) *MemoryTransport {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t := &MemoryTransport{
		router:   r,
		self:     node,
		codec:    codec,
		producer: make(chan types.StoredMessage, 100),
	}
	r.peers[node] = t
	return t
}

// Cut the peer off, dropping everything it sends or should
// receive until unblocked.
func (r *MemoryRouter) Block(node types.NodeId) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.blocked[node] = true
}

func (r *MemoryRouter) Unblock(node types.NodeId) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.blocked, node)
}

// Serialized shape digested on delivery, mirroring what the
// wire transport signs.
type routedPayload struct {
	Sequence types.SeqNo       `json:"sequence"`
	Kind     types.MessageKind `json:"kind"`
	View     json.RawMessage   `json:"view,omitempty"`
}

func (r *MemoryRouter) deliver(from, to types.NodeId, message types.ViewTransferMessage, codec types.ViewCodec) error {
	wire := routedPayload{Sequence: message.Sequence, Kind: message.Kind}
	if message.Kind == types.ViewResponse {
		view, err := codec.Marshal(message.View)
		if err != nil {
			return err
		}
		wire.View = view
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.blocked[from] || r.blocked[to] {
		return nil
	}
	peer, ok := r.peers[to]
	if !ok || peer.closed {
		return nil
	}

	stored := types.StoredMessage{
		Header: types.Header{
			From:   from,
			Digest: sha256.Sum256(payload),
		},
		Message: message,
	}
	select {
	case peer.producer <- stored:
	default:
	}
	return nil
}

// The in memory counterpart of the wire transport.
type MemoryTransport struct {
	router   *MemoryRouter
	self     types.NodeId
	codec    types.ViewCodec
	producer chan types.StoredMessage
	closed   bool
}

func (t *MemoryTransport) BroadcastSigned(message types.ViewTransferMessage, peers []types.NodeId) error {
	for _, peer := range peers {
		if err := t.router.deliver(t.self, peer, message, t.codec); err != nil {
			return err
		}
	}
	return nil
}

func (t *MemoryTransport) SendSigned(message types.ViewTransferMessage, to types.NodeId, flush bool) error {
	return t.router.deliver(t.self, to, message, t.codec)
}

func (t *MemoryTransport) Listen() <-chan types.StoredMessage {
	return t.producer
}

func (t *MemoryTransport) Close() {
	t.router.mutex.Lock()
	defer t.router.mutex.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.producer)
}

// A cluster of replicas wired through the memory fabric.
type TransferCluster struct {
	T         *testing.T
	Router    *MemoryRouter
	Replicas  []*vtransfer.Replica
	Orderings []*TestOrdering
	group     *sync.WaitGroup
}

// Create a cluster of the given size, every replica knowing
// every other and agreeing on the initial view.
func CreateCluster(size int, timeout time.Duration, t *testing.T) *TransferCluster {
	router := NewMemoryRouter()
	members := make([]types.NodeId, size)
	for i := 0; i < size; i++ {
		members[i] = types.NodeId(i)
	}
	view := TestView{Members: members}

	cluster := &TransferCluster{
		T:      t,
		Router: router,
		group:  &sync.WaitGroup{},
	}
	for i := 0; i < size; i++ {
		node := types.NodeId(i)
		configuration := vtransfer.DefaultTransferConfiguration(node, members, TestViewCodec{})
		configuration.TimeoutDuration = timeout
		configuration.Logger.ToggleDebug(false)

		ordering := NewTestOrdering(view)
		transport := router.Connect(node, TestViewCodec{})
		replica := vtransfer.NewReplicaWithTransport(configuration, ordering, definition.NewTimerDriver(), transport)

		cluster.Replicas = append(cluster.Replicas, replica)
		cluster.Orderings = append(cluster.Orderings, ordering)
	}
	return cluster
}

// Stop every replica on the cluster.
func (c *TransferCluster) Off() {
	for _, replica := range c.Replicas {
		c.group.Add(1)
		go c.poweroff(replica)
	}
	c.group.Wait()
}

func (c *TransferCluster) poweroff(replica *vtransfer.Replica) {
	defer c.group.Done()
	replica.Shutdown()
}

// Wait until the replica at the given index installs a view,
// failing the test on timeout.
func (c *TransferCluster) WaitInstall(index int, duration time.Duration) (types.View, bool) {
	select {
	case view := <-c.Orderings[index].Installs:
		return view, true
	case <-time.After(duration):
		c.T.Errorf("replica %d installed nothing after %v", index, duration)
		return nil, false
	}
}

func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
