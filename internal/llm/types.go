package llm

// Message roles as the generation backend expects them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Block is one content block in a generation turn: exactly one of Text,
// Call, or Result is set. Consumers must handle all three; an empty Block
// is a protocol violation from the backend and is dropped during decoding.
type Block struct {
	Text   string
	Call   *ToolCall
	Result *ToolResult
}

// ToolCall is a structured request from the backend to invoke a named
// external capability.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult carries the outcome of a tool invocation back to the backend.
type ToolResult struct {
	Name    string
	Content string
	IsError bool
}

// Message is one turn in the accumulated conversation fed to the backend.
type Message struct {
	Role   string
	Blocks []Block
}

// Turn is the backend's response to one generation request, decoded into
// ordered content blocks.
type Turn struct {
	Blocks []Block
}

// HasToolCalls reports whether any block in the turn requests a tool.
func (t *Turn) HasToolCalls() bool {
	for _, b := range t.Blocks {
		if b.Call != nil {
			return true
		}
	}
	return false
}

// ToolSchema declares one callable tool to the generation backend.
// Parameters is a JSON-schema object describing the arguments.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// UserText builds a single-block user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []Block{{Text: text}}}
}
