package vtransfer

import (
	"context"
	"sync"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/core"
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/definition"
	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
)

// Default configuration for a replica, usable for local
// deployments. Hosts are expected to pick their own timeout
// duration and signing key.
func DefaultTransferConfiguration(name types.NodeId, initial []types.NodeId, codec types.ViewCodec) types.TransferConfig {
	return types.TransferConfig{
		Name:            name,
		TimeoutDuration: time.Second,
		InitialNodes:    initial,
		Codec:           codec,
		Signer:          definition.NewDefaultSigner([]byte("vtransfer")),
		Logger:          definition.NewDefaultLogger(),
	}
}

// Holds information for shutting down the replica.
type poweroff struct {
	shutdown bool
	mutex    *sync.Mutex
}

// A single replica of the view transfer protocol. The replica
// owns the protocol engine and is the single task mutating
// it, pumping poll, receive and process. Requests issued by
// the host are funneled onto the same task through a channel.
type Replica struct {
	// Configuration for the replica.
	configuration types.TransferConfig

	// The protocol state machine.
	engine *core.SimpleViewTransfer

	// Transport used for communication between replicas.
	transport core.Transport

	// The outer ordering protocol, consumer of the
	// discovered views.
	op types.OrderingProtocol

	// Driver firing the round timeouts.
	driver types.TimeoutDriver

	// Channel the driver fires timeouts on.
	timeouts <-chan time.Time

	// Host requests for a view transfer round.
	requests chan struct{}

	// Replica logger.
	log types.Logger

	// The replica cancellable context.
	context context.Context

	// A cancel function to finish the replica processing.
	finish context.CancelFunc

	// Shutdown information, protected to prevent concurrent
	// exits.
	off poweroff
}

// Creates a new replica for the given configuration and
// starts polling for messages. The ordering protocol is the
// host stack that consumes discovered views, the driver
// schedules the round timeouts.
func NewReplica(configuration types.TransferConfig, op types.OrderingProtocol, driver types.TimeoutDriver) (*Replica, error) {
	transport, err := core.NewTransport(configuration)
	if err != nil {
		return nil, err
	}
	return NewReplicaWithTransport(configuration, op, driver, transport), nil
}

// Assemble a replica on top of an already built transport.
// Useful for hosts that share a transport or for testing with
// an in memory one.
func NewReplicaWithTransport(configuration types.TransferConfig, op types.OrderingProtocol, driver types.TimeoutDriver, transport core.Transport) *Replica {
	ctx, done := context.WithCancel(context.Background())
	r := &Replica{
		configuration: configuration,
		engine:        core.NewViewTransfer(transport, configuration.Logger, configuration.InitialNodes),
		transport:     transport,
		op:            op,
		driver:        driver,
		timeouts:      driver.Register(types.TimeoutModuleName, configuration.TimeoutDuration),
		requests:      make(chan struct{}, 1),
		log:           configuration.Logger,
		context:       ctx,
		finish:        done,
		off:           poweroff{mutex: &sync.Mutex{}},
	}
	core.InvokerInstance().Spawn(r.poll)
	return r
}

// Ask the replica to discover the current view. The request
// is handed to the owning task, a round already in flight is
// abandoned and restarted there.
func (r *Replica) RequestLatestView() {
	select {
	case <-r.context.Done():
	case r.requests <- struct{}{}:
	}
}

// Stop the replica.
func (r *Replica) Shutdown() {
	r.off.mutex.Lock()
	defer r.off.mutex.Unlock()

	if r.off.shutdown {
		return
	}
	r.off.shutdown = true
	r.driver.Cancel(types.TimeoutModuleName)
	r.finish()
	r.transport.Close()
}

// This method will keep polling as long as the replica is
// active, processing messages received from the transport,
// host round requests and round timeouts. Every engine
// mutation happens here.
func (r *Replica) poll() {
	defer r.log.Debugf("closing the replica %d", r.configuration.Name)
	for {
		select {
		case <-r.context.Done():
			return
		case <-r.requests:
			if err := r.engine.RequestLatestView(r.op); err != nil {
				r.log.Errorf("failed requesting latest view. %v", err)
				continue
			}
			r.driver.Reset(types.TimeoutModuleName)
		case stored, ok := <-r.transport.Listen():
			if !ok {
				return
			}
			r.process(stored)
		case <-r.timeouts:
			r.timeout()
		}
	}
}

// Feed a single inbound message into the engine, re arming or
// disarming the round timer depending on the outcome.
func (r *Replica) process(stored types.StoredMessage) {
	if r.engine.Poll() != types.ReceiveMsg {
		return
	}

	before := r.engine.SequenceNumber()
	result, err := r.engine.ProcessMessage(r.op, stored)
	if err != nil {
		r.log.Errorf("failed processing message %#v. %v", stored, err)
		return
	}

	switch result {
	case types.VTransferFinished:
		r.driver.Cancel(types.TimeoutModuleName)
	case types.VTransferRunning:
		// A sequence bump means the round re ran and the
		// timer covers the fresh round.
		if r.engine.SequenceNumber() != before {
			r.driver.Reset(types.TimeoutModuleName)
		}
	}
}

func (r *Replica) timeout() {
	result, err := r.engine.HandleTimeout(r.op)
	if err != nil {
		r.log.Errorf("failed re running timed out round. %v", err)
		return
	}
	if result == types.RunProtocolAgain {
		r.driver.Reset(types.TimeoutModuleName)
	}
}
