package gateway

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Status is a live snapshot of the gateway's delivery counters.
type Status struct {
	Workers       int    `json:"workers"`
	QueuedTasks   int    `json:"queued_tasks"`
	Sent          int64  `json:"sent"`
	Skipped       int64  `json:"skipped"`
	Failed        int64  `json:"failed"`
	LastSentAt    string `json:"last_sent_at,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Delivery outcomes reported by the API.
const (
	DeliverySent     = "sent"
	DeliveryRejected = "rejected"
	DeliverySkipped  = "skipped"
	DeliveryFailed   = "failed"
	DeliveryQueued   = "queued"
)

// DeliveryReport describes what happened to one notification attempt.
type DeliveryReport struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type createProjectRequest struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Team    string `json:"team"`
	Webhook string `json:"webhook"`
}

type ingestResponse struct {
	EventID  string         `json:"event_id"`
	GroupID  int64          `json:"group_id"`
	GroupURL string         `json:"group_url"`
	Delivery DeliveryReport `json:"delivery"`
}

type notifyRoomRequest struct {
	EventID  string `json:"event_id"`
	Room     string `json:"room"`
	Label    string `json:"label"`
	Deferred bool   `json:"deferred"`
}

type notifyRoomResponse struct {
	Action   string         `json:"action"`
	Delivery DeliveryReport `json:"delivery"`
}
