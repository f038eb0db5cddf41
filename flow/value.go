package flow

import (
	"encoding/json"
	"fmt"

	"github.com/chaingraph-labs/engine/chainerr"
)

// IsCompatible implements the type-compatibility relation of spec §4.1.
//
// Reflexive on identical kinds. `any` is bi-compatible with everything.
// Numeric↔numeric and string↔string are always compatible. Object↔object
// is compatible iff every required property of the target exists in the
// source with a compatible type (a structural walk over the two SchemaDoc
// maps, see objectStructurallyCompatible).
// Array↔array is compatible iff item configs are compatible. Stream↔stream
// follows the same rule via its element config. Enum is compatible with
// string and with enums sharing the same option-id set.
func IsCompatible(source, target *PortConfig) bool {
	if source == nil || target == nil {
		return false
	}
	sk, tk := source.EffectiveKind(), target.EffectiveKind()

	if sk == PortAny || tk == PortAny {
		return true
	}
	if sk == tk {
		return isCompatibleSameKind(source, target, sk)
	}

	switch {
	case isNumeric(sk) && isNumeric(tk):
		return true
	case sk == PortString && tk == PortString:
		return true
	case sk == PortEnum && tk == PortString, sk == PortString && tk == PortEnum:
		return true
	default:
		return false
	}
}

func isNumeric(k PortKind) bool { return k == PortNumber }

func isCompatibleSameKind(source, target *PortConfig, kind PortKind) bool {
	switch kind {
	case PortString, PortNumber, PortBoolean:
		return true
	case PortEnum:
		return sameOptionSet(source.EnumOptions, target.EnumOptions)
	case PortArray:
		if source.ItemConfig == nil || target.ItemConfig == nil {
			return true
		}
		return IsCompatible(source.ItemConfig, target.ItemConfig)
	case PortObject:
		return objectStructurallyCompatible(source, target)
	case PortStream:
		if source.Stream == nil || target.Stream == nil {
			return true
		}
		if source.Stream.ElemConfig == nil || target.Stream.ElemConfig == nil {
			return true
		}
		return IsCompatible(source.Stream.ElemConfig, target.Stream.ElemConfig)
	default:
		return true
	}
}

func sameOptionSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// objectStructurallyCompatible checks that every required property named
// in target's schema is present in source's schema with a compatible type.
// This is a light structural walk over the two raw JSON Schema documents,
// which are not compiled here: only each property's top-level "type" is
// compared (number and integer count as compatible), and nested schemas are
// not walked.
func objectStructurallyCompatible(source, target *PortConfig) bool {
	if target.SchemaDoc == nil {
		return true // no required shape to satisfy
	}
	if source.SchemaDoc == nil {
		return false
	}
	required, _ := target.SchemaDoc["required"].([]any)
	srcProps, _ := source.SchemaDoc["properties"].(map[string]any)
	tgtProps, _ := target.SchemaDoc["properties"].(map[string]any)
	for _, reqAny := range required {
		req, ok := reqAny.(string)
		if !ok {
			continue
		}
		srcProp, ok := srcProps[req]
		if !ok {
			return false
		}
		if tgtProp, ok := tgtProps[req]; ok {
			if !jsonTypesCompatible(srcProp, tgtProp) {
				return false
			}
		}
	}
	return true
}

func jsonTypesCompatible(srcSchema, tgtSchema any) bool {
	st := schemaTypeOf(srcSchema)
	tt := schemaTypeOf(tgtSchema)
	if st == "" || tt == "" {
		return true
	}
	if st == tt {
		return true
	}
	numeric := map[string]bool{"number": true, "integer": true}
	return numeric[st] && numeric[tt]
}

func schemaTypeOf(schema any) string {
	m, ok := schema.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := m["type"].(string)
	return t
}

// ValidateValue checks v against cfg's schema/kind, returning a
// *chainerr.Error of kind TypeMismatch on failure.
func ValidateValue(cfg *PortConfig, v any) error {
	if v == nil {
		return nil
	}
	kind := cfg.EffectiveKind()
	switch kind {
	case PortAny:
		return nil
	case PortString:
		if _, ok := v.(string); !ok {
			return typeMismatch(kind, v)
		}
	case PortNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
		default:
			return typeMismatch(kind, v)
		}
	case PortBoolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(kind, v)
		}
	case PortEnum:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(kind, v)
		}
		for _, opt := range cfg.EnumOptions {
			if opt == s {
				return nil
			}
		}
		return chainerr.New(chainerr.TypeMismatch, "value %q not among enum options %v", s, cfg.EnumOptions)
	case PortObject, PortArray:
		schema, err := cfg.CompiledSchema()
		if err != nil {
			return chainerr.Wrap(chainerr.TypeMismatch, err, "invalid schema for port")
		}
		if schema == nil {
			return nil
		}
		if err := schema.Validate(jsonRoundTrip(v)); err != nil {
			return chainerr.Wrap(chainerr.TypeMismatch, err, "value failed schema validation")
		}
	case PortStream:
		// Streams carry a MultiChannel handle, not a plain value; no
		// per-item validation happens here (the producer validates each
		// published item against Stream.ElemConfig if desired).
	}
	return nil
}

func typeMismatch(kind PortKind, v any) error {
	return chainerr.New(chainerr.TypeMismatch, "expected %s, got %T", kind, v)
}

// jsonRoundTrip coerces v into the plain map/slice/scalar shape the
// jsonschema validator expects, by marshalling and unmarshalling through
// encoding/json.
func jsonRoundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// DeepCopyJSON deep-copies a value that is (or decodes to) a JSON-
// representable structure, so downstream nodes cannot mutate upstream
// state (spec §4.1: "Object and array values are deep-copied at transfer
// time"). Scalars pass through unchanged since they are already
// copy-by-value in Go.
func DeepCopyJSON(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("deep copy: marshal: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("deep copy: unmarshal: %w", err)
	}
	return out, nil
}
