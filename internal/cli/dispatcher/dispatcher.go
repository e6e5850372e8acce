// Package dispatcher turns a matched command into a synchronous bus
// query against its target module and interprets the reply, per
// spec.md §4.H. Each target module id gets its own sony/gobreaker
// circuit breaker (spec.md §4's component L): a module stuck failing
// its last few round trips trips the breaker, so later commands aimed
// at it fail fast instead of every session eating the full query
// timeout in turn.
package dispatcher

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/netnexus/controlplane/internal/cli/matcher"
	"github.com/netnexus/controlplane/internal/domain/bus"
	"github.com/netnexus/controlplane/internal/domain/mq"
	"github.com/netnexus/controlplane/internal/domain/paramtype"
	"github.com/netnexus/controlplane/internal/domain/registry"
	"github.com/netnexus/controlplane/internal/domain/tlv"
	"github.com/netnexus/controlplane/internal/domain/tree"
)

// DefaultTimeout is the round-trip budget for one dispatched command.
const DefaultTimeout = 5 * time.Second

// ContextElementID is a reserved element id that never collides with a
// real cfg_id: when a session has a non-empty view-context blob (e.g.
// which interface is being configured), Dispatch prepends it to the
// TLV frame under this id so the owning module gets it back on every
// command issued from that view (spec.md §9's replacement for
// g_current_interface).
const ContextElementID uint32 = 0xFFFFFFFF

// OutcomeKind discriminates how a dispatched command renders back to
// the CLI session.
type OutcomeKind int

const (
	// OutcomeLocal signals module_id == 0: a session-local command
	// (help, exit, pager control) never leaves the CLI layer.
	OutcomeLocal OutcomeKind = iota
	// OutcomeBody is an opaque response body to print verbatim.
	OutcomeBody
	// OutcomeViewChange moves the session to a different view.
	OutcomeViewChange
	// OutcomeError is a dispatch failure: timeout, open breaker, or a
	// malformed reply frame.
	OutcomeError
)

// Outcome is the result of dispatching one matched command.
type Outcome struct {
	Kind OutcomeKind
	Body string

	// Set when Kind == OutcomeViewChange. NewViewID == 0 means "stay in
	// the current view" (spec.md §9's resolved view_id==0 meaning);
	// ContextBlob is opaque per-session state (e.g. the interface name
	// under configuration) the session carries on its view stack and
	// the owning module gets back verbatim on the next command in that
	// view.
	NewViewID   uint32
	ContextBlob []byte
}

// Dispatcher routes matched commands to their owning module over a Bus.
type Dispatcher struct {
	bus     *bus.Bus
	Timeout time.Duration

	mu       sync.Mutex
	breakers map[uint32]*gobreaker.CircuitBreaker
}

// New constructs a Dispatcher over b with the default query timeout.
func New(b *bus.Bus) *Dispatcher {
	return &Dispatcher{bus: b, Timeout: DefaultTimeout, breakers: make(map[uint32]*gobreaker.CircuitBreaker)}
}

func (d *Dispatcher) breakerFor(moduleID uint32) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cb, ok := d.breakers[moduleID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("module-%d", moduleID),
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	d.breakers[moduleID] = cb
	return cb
}

// Dispatch encodes res as a TLV frame and queries res.ModuleID over the
// bus under senderID's identity, unless res.ModuleID == 0, which never
// leaves the session. viewContext is the calling session's current
// view-context blob (nil outside a view that set one); when non-empty
// it is prepended to the frame under ContextElementID.
func (d *Dispatcher) Dispatch(ctx context.Context, res *matcher.Result, senderID uint32, viewContext []byte) *Outcome {
	if res.ModuleID == 0 {
		return &Outcome{Kind: OutcomeLocal}
	}

	_, span := otel.Tracer("netnexus/cli/dispatcher").Start(ctx, "cli.dispatch",
		trace.WithAttributes(
			attribute.Int64("netnexus.module_id", int64(res.ModuleID)),
			attribute.Int64("netnexus.group_id", int64(res.GroupID)),
		))
	defer span.End()

	elements := buildElements(res)
	if len(viewContext) > 0 {
		elements = append([]tlv.Element{{ElementID: ContextElementID, Value: tlv.ElementValue{Kind: tlv.KindRaw, Raw: viewContext}}}, elements...)
	}
	frame := tlv.Encode(res.GroupID, elements)
	req := mq.Message{Type: mq.CLI, Payload: mq.Owned(frame)}

	cb := d.breakerFor(res.ModuleID)
	result, err := cb.Execute(func() (interface{}, error) {
		reply := d.bus.Query(senderID, registry.EventCFG, res.ModuleID, req, d.Timeout)
		if reply == nil {
			return nil, fmt.Errorf("module %d did not respond within %s", res.ModuleID, d.Timeout)
		}
		return reply, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &Outcome{Kind: OutcomeError, Body: "Error: " + err.Error()}
	}

	reply := result.(*mq.Message)
	switch reply.Type {
	case mq.CLIViewChg:
		return decodeViewChange(res.ModuleID, reply)
	case mq.CLIResp, mq.CLIContinue:
		return &Outcome{Kind: OutcomeBody, Body: string(reply.Payload.Bytes())}
	default:
		return &Outcome{Kind: OutcomeBody, Body: string(reply.Payload.Bytes())}
	}
}

// decodeViewChange interprets a CLIViewChg payload as a TLV frame whose
// first element is the new view id (u32) and whose optional second
// element is an opaque context blob for the session's view stack.
func decodeViewChange(moduleID uint32, reply *mq.Message) *Outcome {
	_, elems, err := tlv.Decode(reply.Payload.Bytes())
	if err != nil || len(elems) == 0 {
		return &Outcome{Kind: OutcomeError, Body: "Error: malformed view-change reply from module " + strconv.FormatUint(uint64(moduleID), 10)}
	}
	viewID, err := tlv.ReadUint32(elems[0].Value)
	if err != nil {
		return &Outcome{Kind: OutcomeError, Body: "Error: malformed view id in reply from module " + strconv.FormatUint(uint64(moduleID), 10)}
	}
	var ctx []byte
	if len(elems) > 1 {
		ctx = elems[1].Value
	}
	return &Outcome{Kind: OutcomeViewChange, NewViewID: viewID, ContextBlob: ctx}
}

// buildElements converts a matched path's bound elements into the TLV
// wire shape, parsing each argument's token against the parameter type
// the matcher validated it against.
func buildElements(res *matcher.Result) []tlv.Element {
	out := make([]tlv.Element, 0, len(res.Elements))
	for _, el := range res.Elements {
		if el.Kind == tree.Keyword {
			out = append(out, tlv.Element{ElementID: el.CfgID, Value: tlv.ElementValue{Kind: tlv.KindKeyword}})
			continue
		}
		out = append(out, tlv.Element{ElementID: el.CfgID, Value: encodeArgument(el)})
	}
	return out
}

// encodeArgument renders one bound argument token in its declared
// parameter type's wire shape, falling back to a raw string copy if the
// token doesn't parse cleanly under that type (it already passed
// Validate, so this should not normally happen).
func encodeArgument(el matcher.Element) tlv.ElementValue {
	switch paramtype.Parse(el.ParamType).Kind {
	case paramtype.KindUint:
		if v, err := strconv.ParseUint(el.Value, 10, 32); err == nil {
			return tlv.ElementValue{Kind: tlv.KindU32, U32: uint32(v)}
		}
	case paramtype.KindInt:
		if v, err := strconv.ParseInt(el.Value, 10, 32); err == nil {
			return tlv.ElementValue{Kind: tlv.KindI32, I32: int32(v)}
		}
	case paramtype.KindIPv4:
		if ip := net.ParseIP(el.Value); ip != nil {
			return tlv.ElementValue{Kind: tlv.KindIPv4, IP: ip}
		}
	case paramtype.KindIPv6:
		if ip := net.ParseIP(el.Value); ip != nil {
			return tlv.ElementValue{Kind: tlv.KindIPv6, IP: ip}
		}
	case paramtype.KindIP:
		if ip := net.ParseIP(el.Value); ip != nil {
			if ip4 := ip.To4(); ip4 != nil {
				return tlv.ElementValue{Kind: tlv.KindIPv4, IP: ip4}
			}
			return tlv.ElementValue{Kind: tlv.KindIPv6, IP: ip}
		}
	case paramtype.KindMac:
		if mac, err := net.ParseMAC(el.Value); err == nil {
			return tlv.ElementValue{Kind: tlv.KindMac, Mac: mac}
		}
	}
	return tlv.ElementValue{Kind: tlv.KindStr, Str: el.Value}
}
