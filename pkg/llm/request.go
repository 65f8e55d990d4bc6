package llm

// ChatRequest is the outbound body of a single chat turn. The client sends it
// to the proxy, and the proxy forwards it upstream as an UpstreamRequest.
type ChatRequest struct {
	// Query is the user's turn text.
	Query string `json:"query"`

	// ConversationID is the correlation token handed back by the upstream on
	// an earlier turn. Empty on the first turn of a session.
	ConversationID string `json:"conversation_id"`

	// User identifies the caller to the upstream.
	User string `json:"user"`

	// Inputs are structured app variables. Always serialized, as {} when empty.
	Inputs map[string]any `json:"inputs"`
}

// NewChatRequest builds a request with an empty inputs map.
func NewChatRequest(query, conversationID, user string) *ChatRequest {
	return &ChatRequest{
		Query:          query,
		ConversationID: conversationID,
		User:           user,
		Inputs:         map[string]any{},
	}
}

// ResponseModeStreaming asks the upstream for an SSE response.
const ResponseModeStreaming = "streaming"

// UpstreamRequest is the body the proxy posts to the chat backend.
type UpstreamRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	Mode           string         `json:"mode"`
	ConversationID string         `json:"conversation_id"`
	User           string         `json:"user"`
}

// Upstream converts r into a streaming upstream request. A blank user is
// replaced with defaultUser and nil inputs with an empty map.
func (r *ChatRequest) Upstream(defaultUser string) *UpstreamRequest {
	user := r.User
	if user == "" {
		user = defaultUser
	}

	inputs := r.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}

	return &UpstreamRequest{
		Inputs:         inputs,
		Query:          r.Query,
		Mode:           ResponseModeStreaming,
		ConversationID: r.ConversationID,
		User:           user,
	}
}
