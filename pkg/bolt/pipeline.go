package bolt

// ClientResponse is delivered for each RECORD and for the terminal
// SUCCESS of a response stream. Fields is nil for the terminal summary
// frame; Metadata carries the RUN success metadata for record frames and
// the summary metadata for the terminal frame.
type ClientResponse struct {
	Fields   []any
	Metadata map[string]any
	EOF      bool
}
