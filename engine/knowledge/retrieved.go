package knowledge

// RetrievedContext is a chunk returned by similarity search, ready to be
// placed into a prompt.
type RetrievedContext struct {
	ID            string
	Content       string
	Score         float64
	TokenEstimate int
	Metadata      map[string]any
}

// Source returns the originating file name when known.
func (r RetrievedContext) Source() string {
	if v, ok := r.Metadata["source"].(string); ok {
		return v
	}
	return ""
}
