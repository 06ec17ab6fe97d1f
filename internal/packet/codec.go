package packet

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// #region wire
// wirePacket is the three-key wire object: header, mcp, payload.
type wirePacket struct {
	Header  Header          `json:"header"`
	MCP     Envelope        `json:"mcp"`
	Payload json.RawMessage `json:"payload"`
}

// #endregion wire

// #region marshal
// Marshal encodes a packet into its wire JSON form.
func Marshal(p Packet) ([]byte, error) {
	if p.Payload == nil {
		return nil, fmt.Errorf("marshal packet %s: nil payload", p.Header.PacketID)
	}
	if p.Payload.Kind() != p.Header.PacketType {
		return nil, fmt.Errorf("marshal packet %s: header type %s does not match payload kind %s",
			p.Header.PacketID, p.Header.PacketType, p.Payload.Kind())
	}
	raw, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(wirePacket{Header: p.Header, MCP: p.MCP, Payload: raw})
}

// #endregion marshal

// #region unmarshal
// Unmarshal decodes one wire JSON object into a typed packet. The payload
// variant is selected by header.packet_type.
func Unmarshal(data []byte) (Packet, error) {
	var w wirePacket
	if err := json.Unmarshal(data, &w); err != nil {
		return Packet{}, fmt.Errorf("parse packet: %w", err)
	}
	payload, err := decodePayload(w.Header.PacketType, w.Payload)
	if err != nil {
		return Packet{}, fmt.Errorf("packet %s: %w", w.Header.PacketID, err)
	}
	return Packet{Header: w.Header, MCP: w.MCP, Payload: payload}, nil
}

// decodePayload selects and decodes the payload variant for a packet type.
func decodePayload(t PacketType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing payload for type %s", t)
	}
	var target Payload
	switch t {
	case TypeObservation:
		target = &Observation{}
	case TypeBeliefUpdate:
		target = &BeliefUpdate{}
	case TypeDecision:
		target = &Decision{}
	case TypeVerificationPlan:
		target = &VerificationPlan{}
	case TypeToolAuthorizationToken:
		target = &ToolAuthorizationToken{}
	case TypeTaskDirective:
		target = &TaskDirective{}
	case TypeTaskResult:
		target = &TaskResult{}
	case TypeEscalation:
		target = &Escalation{}
	case TypeIntegrityAlert:
		target = &IntegrityAlert{}
	default:
		return nil, fmt.Errorf("unknown packet type %q", t)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(target), nil
}

// deref converts the pointer decode target back to the value form used
// throughout the validators.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Observation:
		return *v
	case *BeliefUpdate:
		return *v
	case *Decision:
		return *v
	case *VerificationPlan:
		return *v
	case *ToolAuthorizationToken:
		return *v
	case *TaskDirective:
		return *v
	case *TaskResult:
		return *v
	case *Escalation:
		return *v
	case *IntegrityAlert:
		return *v
	}
	return p
}

// #endregion unmarshal

// #region sequence
// maxLineBytes bounds one NDJSON line; packets are small policy objects.
const maxLineBytes = 1 << 20

// ReadSequence reads an NDJSON episode sequence: one packet object per
// line, in emission order. Blank lines are skipped.
func ReadSequence(r io.Reader) ([]Packet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var packets []Packet
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		p, err := Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		packets = append(packets, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	return packets, nil
}

// WriteSequence writes packets as NDJSON in emission order.
func WriteSequence(w io.Writer, packets []Packet) error {
	for _, p := range packets {
		data, err := Marshal(p)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write sequence: %w", err)
		}
	}
	return nil
}

// #endregion sequence
