// Package example defines the normalized conversational training record.
//
// Every converter produces Examples, the validator checks them, and the
// packer serializes them one per line. Examples are not mutated after the
// converter returns them.
package example

// Role identifies the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Meta keys written by the converters.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
)

// Message is a single role/content pair.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Example is one training record: ordered messages plus free-form metadata.
// Meta values follow encoding/json decoding, so numbers are float64.
type Example struct {
	Messages []Message     `json:"messages"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Roles returns the role sequence of the example.
func (e Example) Roles() []Role {
	roles := make([]Role, len(e.Messages))
	for i, m := range e.Messages {
		roles[i] = m.Role
	}
	return roles
}

// Source returns meta.source, or "" if it is absent or not a string.
func (e Example) Source() string {
	if e.Meta == nil {
		return ""
	}
	s, _ := e.Meta[MetaSource].(string)
	return s
}

// Chunk returns meta.chunk as an index. ok is false when it is absent or
// not a whole number.
func (e Example) Chunk() (idx int, ok bool) {
	if e.Meta == nil {
		return 0, false
	}
	switch v := e.Meta[MetaChunk].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// FromSource builds an example tagged with the originating file name.
func FromSource(source string, msgs ...Message) Example {
	return Example{
		Messages: msgs,
		Meta:     map[string]any{MetaSource: source},
	}
}

// User is shorthand for a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant is shorthand for an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
