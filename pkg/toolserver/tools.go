package toolserver

// Field limits from spec §4.12's tool table.
const (
	maxUserPromptLen        = 10_000
	maxAssistantResponseLen = 50_000
	maxGetContextQueryLen   = 1_000
	maxSearchMemoryQueryLen = 500
	minContextWindow        = 500
	maxContextWindow        = 8_000
	defaultMaxResults       = 10
	defaultSearchN          = 10
)

// SaveConversationArgs is the save_conversation tool's input.
type SaveConversationArgs struct {
	UserPrompt        string `json:"user_prompt" jsonschema:"description=The user's message for this turn,maxLength=10000"`
	AssistantResponse string `json:"assistant_response" jsonschema:"description=The assistant's reply for this turn,maxLength=50000"`
	SessionID         string `json:"session_id,omitempty" jsonschema:"description=Conversation session id; generated when omitted"`
}

// GetContextArgs is the get_context tool's input.
type GetContextArgs struct {
	Query              string `json:"query" jsonschema:"required,description=Natural-language query to retrieve context for,maxLength=1000"`
	SessionID          string `json:"session_id,omitempty" jsonschema:"description=Session id for continuity scoring"`
	MaxResults         int    `json:"max_results,omitempty" jsonschema:"description=Maximum ranked results to return,minimum=1,maximum=50,default=10"`
	EnableLLMSummary   bool   `json:"enable_llm_summary,omitempty" jsonschema:"description=Summarize the formatted context with an LLM pass"`
	EnableNeuralRerank bool   `json:"enable_neural_rerank,omitempty" jsonschema:"description=Fuse a cross-encoder rerank pass into scoring"`
	ContextWindow      int    `json:"context_window,omitempty" jsonschema:"description=Target character budget for the formatted context string,minimum=500,maximum=8000,default=2000"`
}

// SearchMemoryArgs is the search_memory tool's input.
type SearchMemoryArgs struct {
	Query               string  `json:"query" jsonschema:"required,description=Query text for plain vector search,maxLength=500"`
	SessionID           string  `json:"session_id,omitempty" jsonschema:"description=Session id; search_memory does not filter or score by it"`
	N                   int     `json:"n,omitempty" jsonschema:"description=Number of results to return,minimum=1,maximum=20,default=10"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" jsonschema:"description=Minimum cosine similarity to include a result,minimum=0,maximum=1"`
}

// GetMemoryStatsArgs is the get_memory_stats tool's input.
type GetMemoryStatsArgs struct {
	IncludePerformance bool `json:"include_performance,omitempty" jsonschema:"description=Include a performance section (a note only: no cache hit-rate or latency counters are tracked)"`
}

// ClearSessionArgs is the clear_session tool's input.
type ClearSessionArgs struct {
	SessionID string `json:"session_id" jsonschema:"required,description=UUID of the session to delete,format=uuid"`
}

// Tool is one catalogue entry returned by tools/list (spec §4.12).
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// catalogue is built once; schema generation is pure and has no reason
// to re-run per tools/list call.
var catalogue = []Tool{
	{
		Name:        "save_conversation",
		Description: "Persist one conversational turn (user prompt and/or assistant response) to memory.",
		InputSchema: generateSchema[SaveConversationArgs](),
	},
	{
		Name:        "get_context",
		Description: "Retrieve a ranked, formatted block of relevant prior conversation for a query.",
		InputSchema: generateSchema[GetContextArgs](),
	},
	{
		Name:        "search_memory",
		Description: "Run a plain vector similarity search over stored memory.",
		InputSchema: generateSchema[SearchMemoryArgs](),
	},
	{
		Name:        "get_memory_stats",
		Description: "Return aggregate statistics about stored memory.",
		InputSchema: generateSchema[GetMemoryStatsArgs](),
	},
	{
		Name:        "clear_session",
		Description: "Delete every stored memory row belonging to one session.",
		InputSchema: generateSchema[ClearSessionArgs](),
	},
}

// Catalogue returns the tool catalogue served by tools/list.
func Catalogue() []Tool {
	return catalogue
}
