package layered

// Merge deep-merges the given layers from left to right and returns a new
// mapping. None of the inputs are modified.
//
// When a key is present in more than one layer the rightmost value wins,
// except when both values are mappings, in which case they are merged key by
// key. Sequences are replaced wholesale, never concatenated.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, deepCopy(layer).(map[string]any))
	}
	return out
}

// mergeInto merges src into dst in place. src must not be shared with any
// other mapping since its nested values are adopted by dst.
func mergeInto(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, incoming := range src {
		existing, ok := dst[key]
		if ok && KindOf(existing) == KindMap && KindOf(incoming) == KindMap {
			dst[key] = mergeInto(existing.(map[string]any), incoming.(map[string]any))
			continue
		}
		dst[key] = incoming
	}
	return dst
}
