package packet

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// #region schema-doc
// wireSchema is the structural contract for the three-key wire object.
// Field presence and enum membership live here; cross-packet semantics
// belong to the FSM and invariant validators.
const wireSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["header", "mcp", "payload"],
  "additionalProperties": false,
  "properties": {
    "header": {
      "type": "object",
      "required": ["packet_id", "packet_type", "created_at", "source_layer", "correlation_id"],
      "properties": {
        "packet_id": {"type": "string", "minLength": 1},
        "packet_type": {
          "type": "string",
          "enum": [
            "Observation", "BeliefUpdate", "Decision", "VerificationPlan",
            "ToolAuthorizationToken", "TaskDirective", "TaskResult",
            "Escalation", "IntegrityAlert"
          ]
        },
        "created_at": {"type": "string"},
        "source_layer": {
          "type": "string",
          "enum": [
            "L1_SENSING", "L2_BELIEF", "L3_REASONING",
            "L4_VERIFICATION", "L5_EXECUTION", "L6_GOVERNANCE", "INTEGRITY"
          ]
        },
        "correlation_id": {"type": "string", "minLength": 1},
        "campaign_id": {"type": "string"},
        "previous_packet_id": {"type": "string"}
      }
    },
    "mcp": {
      "type": "object",
      "required": ["intent", "stakes", "quality", "budgets", "epistemics", "evidence", "routing"],
      "properties": {
        "intent": {"type": "object"},
        "stakes": {
          "type": "object",
          "required": ["impact", "irreversibility", "uncertainty", "adversariality", "stakes_level"],
          "properties": {
            "impact": {"enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL"]},
            "irreversibility": {"enum": ["REVERSIBLE", "PARTIAL", "IRREVERSIBLE"]},
            "uncertainty": {"enum": ["LOW", "MEDIUM", "HIGH"]},
            "adversariality": {"enum": ["BENIGN", "CONTESTED", "HOSTILE"]},
            "stakes_level": {"enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL"]}
          }
        },
        "quality": {
          "type": "object",
          "required": ["tier"],
          "properties": {
            "tier": {"enum": ["SUBPAR", "STANDARD", "SUPERB"]}
          }
        },
        "budgets": {"type": "object"},
        "epistemics": {
          "type": "object",
          "required": ["status", "confidence", "freshness"],
          "properties": {
            "status": {"enum": ["OBSERVED", "INFERRED", "REMEMBERED", "HYPOTHESIZED", "UNKNOWN"]},
            "confidence": {"type": "number", "minimum": 0, "maximum": 1},
            "freshness": {"enum": ["REALTIME", "OPERATIONAL", "STABLE", "STALE"]}
          }
        },
        "evidence": {"type": "object"},
        "routing": {
          "type": "object",
          "required": ["tools"],
          "properties": {
            "tools": {"enum": ["TOOLS_OK", "TOOLS_PARTIAL", "TOOLS_DOWN"]}
          }
        }
      }
    },
    "payload": {"type": "object"}
  }
}`

// #endregion schema-doc

// #region compile
var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("packet.schema.json", strings.NewReader(wireSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, schemaErr = compiler.Compile("packet.schema.json")
	})
	return compiled, schemaErr
}

// #endregion compile

// #region check
// CheckStructure validates raw wire JSON against the packet schema. This is
// the structural layer: a failure here is a malformed packet, not a
// protocol violation.
func CheckStructure(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse packet: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("packet structure: %w", err)
	}
	return nil
}

// #endregion check
