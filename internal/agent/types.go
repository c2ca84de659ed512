package agent

// Author identifies who produced a chat entry. The numeric values are part
// of the wire format.
type Author int

const (
	AuthorAgent Author = 0
	AuthorUser  Author = 1
)

// ChatEntry is one turn of a conversation. Transient entries are
// progress-only and should be dropped from persisted history by the caller;
// IsStop marks the final entry of a streamed turn.
type ChatEntry struct {
	Content     string `json:"content"`
	Author      Author `json:"author"`
	Context     string `json:"context,omitempty"`
	IsTransient bool   `json:"isTransient,omitempty"`
	IsStop      bool   `json:"isStop,omitempty"`
}
