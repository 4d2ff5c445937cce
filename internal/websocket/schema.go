package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

// RequestEnvelope is used to peek at the action before full parsing.
// The countdown stream currently accepts no actions; clients that send
// one are drained without reply.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
)

// TickResponse carries one countdown update. RemainingSeconds is derived
// from the exam window on every tick, so extra-time grants show up on
// the very next message.
type TickResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Status           string `json:"status"`
}

// SubmittedResponse closes the stream once the sitting reaches its
// terminal state.
type SubmittedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
