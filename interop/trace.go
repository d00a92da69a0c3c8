package interop

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/caffeineduck/browserinterop/contract"
	"go.uber.org/zap"
)

// Trace selects which interop activity is logged.
type Trace struct {
	Calls       bool
	Details     bool
	Handshake   bool
	FailedCalls bool
	// Filtered FQNs are never traced.
	Filtered []string
}

// DefaultFilteredFQNs lists the chatty services excluded from tracing.
func DefaultFilteredFQNs() []string {
	return []string{contract.HSLoggerForward, contract.HSAsyncSOAJSONMessage}
}

func (p *Peer) traceCall(outbound bool, kind string, desc contract.Descriptor, payload string) {
	if !p.trace.Calls && !p.trace.Details {
		return
	}
	if slices.Contains(p.trace.Filtered, desc.FQN) {
		return
	}

	fields := []zap.Field{
		zap.String("direction", p.role.direction(outbound)),
		zap.String("kind", kind),
		zap.Stringer("service", desc),
	}
	if p.trace.Details {
		fields = append(fields, zap.String("payload", DescribePayload(desc, payload)))
	}
	p.log.Info("interop call", fields...)
}

// DescribePayload renders a payload for logs, expanding the embedded JSON
// of selection references.
func DescribePayload(desc contract.Descriptor, payload string) string {
	if payload == "" {
		return "{Empty Payload}"
	}
	if !strings.HasPrefix(payload, "{") {
		return "String: " + payload
	}
	if !json.Valid([]byte(payload)) {
		return "String Ex: " + payload
	}

	if desc.FQN != contract.CSSelectionListener && desc.FQN != contract.HSSelectionProvider {
		return payload
	}

	msg, err := contract.Decode[contract.Selection](payload)
	if err != nil {
		return payload
	}
	type expanded struct {
		Type string          `json:"Type"`
		Data json.RawMessage `json:"Data"`
	}
	refs := make([]expanded, 0, len(msg.Selection))
	for _, ref := range msg.Selection {
		data := contract.DecodeEmbeddedJSON(ref.Data)
		if !json.Valid([]byte(data)) {
			quoted, _ := json.Marshal(data)
			data = string(quoted)
		}
		refs = append(refs, expanded{Type: ref.Type, Data: json.RawMessage(data)})
	}
	out, err := json.Marshal(map[string]any{"Selection": refs, "SingleSelect": msg.SingleSelect})
	if err != nil {
		return payload
	}
	return string(out)
}
