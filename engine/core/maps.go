package core

import "maps"

// CloneMap returns a shallow copy of m, or nil for an empty map.
func CloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

// CopyMaps merges the given maps left to right into a new map.
func CopyMaps(src ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range src {
		maps.Copy(out, m)
	}
	return out
}
