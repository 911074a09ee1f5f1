package utils

// SetOf builds a membership set from a slice. Empty strings are ignored.
func SetOf(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		out[it] = struct{}{}
	}
	return out
}

// Has reports whether key is in set. A nil set contains nothing.
func Has[K comparable](set map[K]struct{}, key K) bool {
	_, ok := set[key]
	return ok
}
