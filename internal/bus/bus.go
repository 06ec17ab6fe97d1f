// Package bus implements the directional inter-layer message buses.
// Northbound carries lower-layer traffic upward (plus the Integrity sink,
// which may receive from anyone); southbound carries higher-layer traffic
// downward (plus Integrity, which may send to anyone). Same-layer routing
// is always illegal.
package bus

import (
	"fmt"
	"sort"
	"sync"

	"packetgate/internal/packet"
)

// #region types
// Direction selects which routing rule a bus instance enforces.
type Direction string

const (
	Northbound Direction = "NORTHBOUND"
	Southbound Direction = "SOUTHBOUND"
)

// Handler consumes one delivered packet. A returned error (or panic) is
// captured as a DeliveryFailure and never stops fan-out.
type Handler func(p packet.Packet) error

// DeliveryFailure records one isolated subscriber failure.
type DeliveryFailure struct {
	Layer packet.Layer
	Err   string
}

// PublishResult reports fan-out for one publish call.
type PublishResult struct {
	Delivered []packet.Layer
	Failures  []DeliveryFailure
}

// LogFilter selects retained messages. Zero values match everything.
type LogFilter struct {
	CorrelationID string
	SourceLayer   packet.Layer
	PacketType    packet.PacketType
}

// #endregion types

// #region bus-struct
// Bus is one directional publish/subscribe channel with a retained
// in-memory message log. Subscription is late-binding.
type Bus struct {
	direction Direction

	mu          sync.Mutex
	subscribers map[packet.Layer]Handler
	log         []packet.Packet
}

// New creates a bus for the given direction.
func New(direction Direction) *Bus {
	return &Bus{
		direction:   direction,
		subscribers: make(map[packet.Layer]Handler),
	}
}

// Direction returns the bus routing direction.
func (b *Bus) Direction() Direction { return b.direction }

// #endregion bus-struct

// #region routing
// CanRoute is a pure function of the fixed layer ordering. Same-layer
// routing is always illegal. Northbound: strictly lower to higher, and
// Integrity receives from anyone. Southbound: strictly higher to lower,
// and Integrity sends to anyone.
func (b *Bus) CanRoute(source, target packet.Layer) bool {
	if source == target {
		return false
	}
	switch b.direction {
	case Northbound:
		if target == packet.LayerIntegrity {
			return true
		}
		so, to := source.Order(), target.Order()
		return so > 0 && to > 0 && so < to
	case Southbound:
		if source == packet.LayerIntegrity {
			return target.Order() > 0
		}
		so, to := source.Order(), target.Order()
		return so > 0 && to > 0 && so > to
	}
	return false
}

// #endregion routing

// #region subscribe
// Subscribe attaches a handler for a layer, replacing any existing one.
// Layers may subscribe at any time, including mid-episode.
func (b *Bus) Subscribe(layer packet.Layer, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[layer] = h
}

// Unsubscribe detaches a layer. An unsubscribed layer receives nothing.
func (b *Bus) Unsubscribe(layer packet.Layer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, layer)
}

// #endregion subscribe

// #region publish
// Publish delivers p to every subscriber whose layer is routable from the
// packet's source layer. A nil target means broadcast; a non-nil target
// restricts delivery to that single layer. Fan-out is synchronous and each
// handler invocation is isolated: errors and panics become
// DeliveryFailure values and do not prevent delivery to other layers.
func (b *Bus) Publish(p packet.Packet, target *packet.Layer) PublishResult {
	b.mu.Lock()
	b.log = append(b.log, p)
	type delivery struct {
		layer   packet.Layer
		handler Handler
	}
	var deliveries []delivery
	for layer, h := range b.subscribers {
		if target != nil && layer != *target {
			continue
		}
		if !b.CanRoute(p.Header.SourceLayer, layer) {
			continue
		}
		deliveries = append(deliveries, delivery{layer: layer, handler: h})
	}
	b.mu.Unlock()

	// Stable fan-out order: by layer position, Integrity last.
	sort.Slice(deliveries, func(i, j int) bool {
		oi, oj := deliveries[i].layer.Order(), deliveries[j].layer.Order()
		if oi == 0 {
			oi = 7
		}
		if oj == 0 {
			oj = 7
		}
		return oi < oj
	})

	var result PublishResult
	for _, d := range deliveries {
		if err := invoke(d.handler, p); err != nil {
			result.Failures = append(result.Failures, DeliveryFailure{Layer: d.layer, Err: err.Error()})
			continue
		}
		result.Delivered = append(result.Delivered, d.layer)
	}
	return result
}

// invoke runs a handler, converting panics into errors.
func invoke(h Handler, p packet.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(p)
}

// #endregion publish

// #region log
// Log returns retained messages matching the filter, in publish order.
func (b *Bus) Log(f LogFilter) []packet.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []packet.Packet
	for _, p := range b.log {
		if f.CorrelationID != "" && p.Header.CorrelationID != f.CorrelationID {
			continue
		}
		if f.SourceLayer != "" && p.Header.SourceLayer != f.SourceLayer {
			continue
		}
		if f.PacketType != "" && p.Header.PacketType != f.PacketType {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ClearLog discards all retained messages.
func (b *Bus) ClearLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = nil
}

// #endregion log
