package chat

// Snapshot is a read-only copy of the conversation handed to the presentation
// layer. Version increases with every store mutation so consumers can discard
// stale frames.
type Snapshot struct {
	Version  uint64    `json:"version"`
	Loading  bool      `json:"loading"`
	Messages []Message `json:"messages"`
}
