package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jabolina/go-vtransfer/pkg/vtransfer/types"
	"github.com/jabolina/relt/pkg/relt"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
)

// The transport interface providing the communication
// primitives required by the protocol. Every emission is
// signed and best effort, the protocol never retries a send.
type Transport interface {
	// Fire and forget broadcast of the signed message to
	// every peer yielded by the iterator.
	BroadcastSigned(message types.ViewTransferMessage, peers []types.NodeId) error

	// Best effort unicast of the signed message. The flush
	// flag hints whether the transport should emit
	// immediately instead of coalescing.
	SendSigned(message types.ViewTransferMessage, to types.NodeId, flush bool) error

	// Listen for messages that arrive on the transport,
	// already digested and enveloped. The ReliableTransport
	// does not check the envelope signature on receipt.
	Listen() <-chan types.StoredMessage

	// Close the transport for sending and receiving.
	Close()
}

// What actually crosses the wire. The payload holds the
// serialized protocol message and the signature covers it,
// the receiving side digests the same payload bytes so equal
// content always produces equal digests.
type wireEnvelope struct {
	From      types.NodeId `json:"from"`
	Payload   []byte       `json:"payload"`
	Signature []byte       `json:"signature"`
}

// Serialized form of the protocol message. The view payload
// is kept raw so the host codec can decide its shape.
type wireMessage struct {
	Sequence types.SeqNo       `json:"sequence"`
	Kind     types.MessageKind `json:"kind"`
	View     json.RawMessage   `json:"view,omitempty"`
}

// An instance of the Transport interface backed by the relt
// reliable exchange. Each replica consumes its own exchange,
// addressed by the peer identifier.
type ReliableTransport struct {
	// Transport logger.
	log types.Logger

	// Reliable transport.
	relt *relt.Relt

	// Local replica identity stamped on every envelope.
	self types.NodeId

	// Codec for the host concrete view type.
	codec types.ViewCodec

	// Signs outbound payloads.
	signer types.Signer

	// Channel to publish the receiving messages.
	producer chan types.StoredMessage

	// The transport context.
	context context.Context

	// The finish function to closing the transport.
	finish context.CancelFunc
}

// Address of the exchange a replica consumes.
func exchangeFor(node types.NodeId) relt.GroupAddress {
	return relt.GroupAddress(fmt.Sprintf("vt-replica-%d", node))
}

// Create a new instance of the transport interface, already
// consuming from the local replica exchange.
func NewTransport(configuration types.TransferConfig) (Transport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = fmt.Sprintf("vt-replica-%d", configuration.Name)
	conf.Exchange = exchangeFor(configuration.Name)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed creating transport for replica %d", configuration.Name)
	}
	ctx, done := context.WithCancel(context.Background())
	t := &ReliableTransport{
		log:      configuration.Logger,
		relt:     r,
		self:     configuration.Name,
		codec:    configuration.Codec,
		signer:   configuration.Signer,
		producer: make(chan types.StoredMessage, 100),
		context:  ctx,
		finish:   done,
	}
	InvokerInstance().Spawn(t.poll)
	return t, nil
}

func (r *ReliableTransport) apply(message types.ViewTransferMessage, to types.NodeId) error {
	wire := wireMessage{
		Sequence: message.Sequence,
		Kind:     message.Kind,
	}
	if message.Kind == types.ViewResponse {
		view, err := r.codec.Marshal(message.View)
		if err != nil {
			log.Errorf("failed marshalling view of %#v. %v", message, err)
			return errors.Wrap(err, "failed marshalling view")
		}
		wire.View = view
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		log.Errorf("failed marshalling message %#v. %v", message, err)
		return err
	}

	envelope := wireEnvelope{
		From:      r.self,
		Payload:   payload,
		Signature: r.signer.Sign(payload),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	m := relt.Send{
		Address: exchangeFor(to),
		Data:    data,
	}
	return r.relt.Broadcast(r.context, m)
}

// ReliableTransport implements Transport interface.
func (r *ReliableTransport) BroadcastSigned(message types.ViewTransferMessage, peers []types.NodeId) error {
	var failure error
	for _, peer := range peers {
		if err := r.apply(message, peer); err != nil {
			r.log.Errorf("failed sending %#v to %d. %v", message, peer, err)
			if failure == nil {
				failure = err
			}
		}
	}
	return failure
}

// ReliableTransport implements Transport interface.
func (r *ReliableTransport) SendSigned(message types.ViewTransferMessage, to types.NodeId, flush bool) error {
	return r.apply(message, to)
}

// ReliableTransport implements Transport interface.
func (r *ReliableTransport) Listen() <-chan types.StoredMessage {
	return r.producer
}

// ReliableTransport implements Transport interface.
func (r *ReliableTransport) Close() {
	r.finish()
	if err := r.relt.Close(); err != nil {
		r.log.Errorf("failed stopping transport. %#v", err)
	}
}

// This method will keep polling until the transport context
// is cancelled. The messages that arrive through the
// underlying transport channel are sent to the consume
// method to be parsed and published to the listener.
func (r *ReliableTransport) poll() {
	listener, err := r.relt.Consume()
	if err != nil {
		panic(err)
	}
	for {
		select {
		case <-r.context.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			r.consume(recv.Data, recv.Error)
		}
	}
}

// Consume receives raw bytes from the transport and parses
// them into the enveloped shape the protocol expects. The
// digest is computed here, over the signed payload bytes, so
// the protocol can use it as the canonical view identity.
func (r *ReliableTransport) consume(data []byte, failure error) {
	if failure != nil {
		r.log.Errorf("failed consuming message. %v", failure)
		return
	}

	if data == nil {
		r.log.Warnf("received empty message")
		return
	}

	var envelope wireEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		r.log.Errorf("failed unmarshalling envelope %#v. %v", data, err)
		return
	}

	var wire wireMessage
	if err := json.Unmarshal(envelope.Payload, &wire); err != nil {
		r.log.Errorf("failed unmarshalling message %#v. %v", envelope, err)
		return
	}

	message := types.ViewTransferMessage{
		Sequence: wire.Sequence,
		Kind:     wire.Kind,
	}
	if wire.Kind == types.ViewResponse {
		view, err := r.codec.Unmarshal(wire.View)
		if err != nil {
			r.log.Errorf("failed unmarshalling view %#v. %v", wire, err)
			return
		}
		message.View = view
	}

	stored := types.StoredMessage{
		Header: types.Header{
			From:   envelope.From,
			Digest: sha256.Sum256(envelope.Payload),
		},
		Message: message,
	}

	timeout, cancel := context.WithTimeout(r.context, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		r.log.Warnf("failed consuming %#v", message)
		return
	case r.producer <- stored:
		return
	}
}
