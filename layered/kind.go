package layered

import "fmt"

// Kind classifies a configuration value for merging.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf reports the Kind of a value produced by the loader.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case map[string]any:
		return KindMap
	case []any:
		return KindSequence
	default:
		return KindScalar
	}
}

// normalize rewrites decoded YAML so that every mapping is map[string]any.
// yaml.v3 yields map[string]any for string-keyed mappings but map[any]any
// when a key is an int, bool or similar.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// deepCopy clones maps and slices so callers cannot mutate merged state.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
