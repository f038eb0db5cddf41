package flow

import (
	"sync"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// PortKind is the closed tagged-union of port value types (spec §9:
// "Class-based port polymorphism → tagged union over PortConfig variants").
type PortKind string

const (
	PortString  PortKind = "string"
	PortNumber  PortKind = "number"
	PortBoolean PortKind = "boolean"
	PortEnum    PortKind = "enum"
	PortObject  PortKind = "object"
	PortArray   PortKind = "array"
	PortStream  PortKind = "stream"
	PortAny     PortKind = "any"
)

// Direction is a port's role with respect to data flow.
type Direction string

const (
	DirectionInput       Direction = "input"
	DirectionOutput      Direction = "output"
	DirectionPassthrough Direction = "passthrough"
)

// StreamConfig configures a stream port's backing MultiChannel.
type StreamConfig struct {
	// ElemConfig describes the type of each item published on the stream.
	ElemConfig *PortConfig
	// HighWaterMark / LowWaterMark bound the channel's buffer (spec §4.5).
	// Zero means "use the engine default".
	HighWaterMark int
	LowWaterMark  int
}

// PortConfig describes a port's type. Exactly the fields relevant to Kind
// are meaningful; this mirrors the teacher's schema.Reducer dispatch-by-key
// pattern but dispatches on Kind instead of a map key.
type PortConfig struct {
	Kind PortKind

	// EnumOptions holds the valid option ids when Kind == PortEnum.
	EnumOptions []string

	// ItemConfig describes array elements when Kind == PortArray.
	ItemConfig *PortConfig

	// SchemaDoc is a raw JSON Schema document. ValidateValue checks
	// PortObject and PortArray values against it (compiled lazily and
	// cached), and IsCompatible walks it for PortObject structural
	// compatibility (§4.1: "Object↔object compatible iff every required
	// property of the target exists in the source with a compatible type").
	SchemaDoc map[string]any

	// Stream holds the stream-specific configuration when Kind == PortStream.
	Stream *StreamConfig

	compiledOnce sync.Once
	compiled     *jsonschema.Schema
	compileErr   error

	// adopted is the concrete kind an `any` port has locked onto after its
	// first compatible peer connection (spec §4.1, §9). A nil value means
	// no adoption has happened yet. Guarded by atomic CAS so the scheduler
	// (reader) and the edge-wiring code (writer) never need a lock here.
	adopted atomic.Pointer[PortConfig]
}

// CompiledSchema lazily compiles SchemaDoc and caches the result.
func (c *PortConfig) CompiledSchema() (*jsonschema.Schema, error) {
	c.compiledOnce.Do(func() {
		if c.SchemaDoc == nil {
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("port-schema.json", c.SchemaDoc); err != nil {
			c.compileErr = err
			return
		}
		schema, err := compiler.Compile("port-schema.json")
		if err != nil {
			c.compileErr = err
			return
		}
		c.compiled = schema
	})
	return c.compiled, c.compileErr
}

// Adopt records the underlying concrete kind an `any` port has bound to,
// the first time it sees a compatible concrete peer. It is a no-op (first
// writer wins) if adoption already happened; callers that need "re-binding"
// must explicitly call ResetAdoption first (spec §9: "re-binding requires
// explicit reset to prevent silent type drift").
func (c *PortConfig) Adopt(peer *PortConfig) (adopted *PortConfig, wasFirst bool) {
	if c.Kind != PortAny {
		return c, false
	}
	if existing := c.adopted.Load(); existing != nil {
		return existing, false
	}
	swapped := c.adopted.CompareAndSwap(nil, peer)
	return c.adopted.Load(), swapped
}

// AdoptedConfig returns the underlying kind an `any` port has adopted, or
// nil if none yet.
func (c *PortConfig) AdoptedConfig() *PortConfig {
	return c.adopted.Load()
}

// ResetAdoption clears a prior adoption, allowing the port to re-bind.
func (c *PortConfig) ResetAdoption() {
	c.adopted.Store(nil)
}

// EffectiveKind returns the kind to use for compatibility checks: the
// adopted concrete kind if this is an `any` port that has adopted one,
// otherwise Kind itself.
func (c *PortConfig) EffectiveKind() PortKind {
	if c.Kind == PortAny {
		if adopted := c.adopted.Load(); adopted != nil {
			return adopted.EffectiveKind()
		}
	}
	return c.Kind
}

// Port is a typed slot on a Node: identity, direction, type, default value,
// and (for non-stream ports) the node-owned current value.
type Port struct {
	ID        string
	Key       string
	Direction Direction
	System    bool // flow-control port (start/then/error/complete) vs data port
	Config    PortConfig
	Default   any

	mu       sync.RWMutex
	value    any
	hasValue bool
	fromEdge bool // true once a value was delivered via an incoming edge
}

// NewPort constructs a port, seeding its stored value with Default.
func NewPort(id, key string, dir Direction, cfg PortConfig, def any) *Port {
	p := &Port{ID: id, Key: key, Direction: dir, Config: cfg, Default: def}
	if def != nil {
		p.value = def
		p.hasValue = true
	}
	return p
}

// GetValue returns the port's current stored value.
func (p *Port) GetValue() (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.hasValue
}

// SetValue stores v on the port after validating it against the port's
// schema, and (when fromEdge is true) marks that the value arrived over an
// incoming edge rather than being the static default, as reported by
// HasIncomingValue. Resolve does not read that flag: it returns the latest
// stored value, which an edge delivery overwrites.
func (p *Port) SetValue(v any, fromEdge bool) error {
	if err := ValidateValue(&p.Config, v); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.hasValue = true
	if fromEdge {
		p.fromEdge = true
	}
	return nil
}

// Resolve implements passthrough resolution (spec §4.1): a passthrough
// port exposes the value delivered over an incoming edge if one arrived,
// otherwise its stored default/current value.
func (p *Port) Resolve() (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.hasValue
}

// HasIncomingValue reports whether this port ever received a value over an
// edge (as opposed to only ever exposing its static default).
func (p *Port) HasIncomingValue() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fromEdge
}

// Clone returns a fresh runtime Port sharing this port's static
// configuration but with independent mutable value state, for
// instantiating one node definition into a brand-new execution (spec §4.3:
// a Snapshot is value-immutable; each execution gets its own port state).
func (p *Port) Clone() *Port {
	return NewPort(p.ID, p.Key, p.Direction, p.Config.clone(), p.Default)
}

// clone copies a PortConfig's static fields, resetting per-execution state
// (the compiled-schema cache and any `any`-port type adoption) so each
// execution starts adoption fresh.
func (c *PortConfig) clone() PortConfig {
	out := PortConfig{
		Kind:        c.Kind,
		EnumOptions: append([]string(nil), c.EnumOptions...),
		SchemaDoc:   c.SchemaDoc, // read-only document, safe to share
		Stream:      c.Stream,
	}
	if c.ItemConfig != nil {
		item := c.ItemConfig.clone()
		out.ItemConfig = &item
	}
	return out
}
