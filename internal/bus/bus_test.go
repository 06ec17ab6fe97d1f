package bus

import (
	"errors"
	"testing"
	"time"

	"packetgate/internal/packet"
)

func obsPacket(id, correlation string, source packet.Layer) packet.Packet {
	return packet.Packet{
		Header: packet.Header{
			PacketID:      id,
			PacketType:    packet.TypeObservation,
			CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceLayer:   source,
			CorrelationID: correlation,
		},
		Payload: packet.Observation{Subject: "s", Content: "c"},
	}
}

func TestCanRoute(t *testing.T) {
	north := New(Northbound)
	south := New(Southbound)

	cases := []struct {
		name   string
		bus    *Bus
		src    packet.Layer
		dst    packet.Layer
		expect bool
	}{
		{"north lower to higher", north, packet.LayerSensing, packet.LayerBelief, true},
		{"north higher to lower", north, packet.LayerBelief, packet.LayerSensing, false},
		{"north same layer", north, packet.LayerBelief, packet.LayerBelief, false},
		{"north anyone to integrity", north, packet.LayerExecution, packet.LayerIntegrity, true},
		{"north integrity to layer", north, packet.LayerIntegrity, packet.LayerBelief, false},
		{"south higher to lower", south, packet.LayerGovernance, packet.LayerExecution, true},
		{"south lower to higher", south, packet.LayerSensing, packet.LayerBelief, false},
		{"south same layer", south, packet.LayerExecution, packet.LayerExecution, false},
		{"south integrity to anyone", south, packet.LayerIntegrity, packet.LayerSensing, true},
		{"south integrity to itself", south, packet.LayerIntegrity, packet.LayerIntegrity, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bus.CanRoute(tc.src, tc.dst); got != tc.expect {
				t.Fatalf("CanRoute(%s, %s) = %v, want %v", tc.src, tc.dst, got, tc.expect)
			}
		})
	}
}

func TestPublishBroadcast(t *testing.T) {
	b := New(Northbound)
	var got []packet.Layer
	for _, l := range []packet.Layer{packet.LayerBelief, packet.LayerReasoning, packet.LayerIntegrity} {
		layer := l
		b.Subscribe(layer, func(p packet.Packet) error {
			got = append(got, layer)
			return nil
		})
	}

	res := b.Publish(obsPacket("p1", "ep-1", packet.LayerSensing), nil)
	if len(res.Delivered) != 3 || len(res.Failures) != 0 {
		t.Fatalf("expected 3 deliveries, got %+v", res)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 handler calls, got %d", len(got))
	}
}

func TestPublishTargeted(t *testing.T) {
	b := New(Northbound)
	calls := map[packet.Layer]int{}
	for _, l := range []packet.Layer{packet.LayerBelief, packet.LayerReasoning} {
		layer := l
		b.Subscribe(layer, func(p packet.Packet) error {
			calls[layer]++
			return nil
		})
	}

	target := packet.LayerReasoning
	res := b.Publish(obsPacket("p1", "ep-1", packet.LayerSensing), &target)
	if len(res.Delivered) != 1 || res.Delivered[0] != packet.LayerReasoning {
		t.Fatalf("expected single delivery to reasoning, got %+v", res)
	}
	if calls[packet.LayerBelief] != 0 {
		t.Fatal("belief layer must not receive targeted publish")
	}
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	b := New(Northbound)
	b.Subscribe(packet.LayerBelief, func(p packet.Packet) error {
		return errors.New("handler broke")
	})
	b.Subscribe(packet.LayerReasoning, func(p packet.Packet) error {
		panic("handler panicked")
	})
	delivered := false
	b.Subscribe(packet.LayerIntegrity, func(p packet.Packet) error {
		delivered = true
		return nil
	})

	res := b.Publish(obsPacket("p1", "ep-1", packet.LayerSensing), nil)
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", res.Failures)
	}
	if !delivered {
		t.Fatal("failure in one handler must not block others")
	}
}

func TestUnsubscribeMidEpisode(t *testing.T) {
	b := New(Northbound)
	count := 0
	b.Subscribe(packet.LayerBelief, func(p packet.Packet) error {
		count++
		return nil
	})

	b.Publish(obsPacket("p1", "ep-1", packet.LayerSensing), nil)
	b.Unsubscribe(packet.LayerBelief)
	b.Publish(obsPacket("p2", "ep-1", packet.LayerSensing), nil)

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestLogQueryAndClear(t *testing.T) {
	b := New(Northbound)
	b.Publish(obsPacket("p1", "ep-1", packet.LayerSensing), nil)
	b.Publish(obsPacket("p2", "ep-2", packet.LayerSensing), nil)
	b.Publish(obsPacket("p3", "ep-1", packet.LayerBelief), nil)

	if got := b.Log(LogFilter{CorrelationID: "ep-1"}); len(got) != 2 {
		t.Fatalf("expected 2 for ep-1, got %d", len(got))
	}
	if got := b.Log(LogFilter{SourceLayer: packet.LayerBelief}); len(got) != 1 {
		t.Fatalf("expected 1 for belief source, got %d", len(got))
	}
	if got := b.Log(LogFilter{PacketType: packet.TypeObservation}); len(got) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(got))
	}

	b.ClearLog()
	if got := b.Log(LogFilter{}); len(got) != 0 {
		t.Fatalf("expected empty log after clear, got %d", len(got))
	}
}
