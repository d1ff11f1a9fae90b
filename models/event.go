package models

// Team groups projects for display purposes.
type Team struct {
	ID        int64  `db:"id"         json:"id"`
	Slug      string `db:"slug"       json:"slug"`
	Name      string `db:"name"       json:"name"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Project is the unit notifications are configured for.
type Project struct {
	ID        int64  `db:"id"         json:"id"`
	Slug      string `db:"slug"       json:"slug"`
	Name      string `db:"name"       json:"name"`
	TeamID    int64  `db:"team_id"    json:"team_id"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Group is the deduplication bucket events with the same fingerprint fall into.
type Group struct {
	ID           int64  `db:"id"            json:"id"`
	ProjectID    int64  `db:"project_id"    json:"project_id"`
	Fingerprint  string `db:"fingerprint"   json:"fingerprint"`
	Message      string `db:"message"       json:"message"`
	MessageShort string `db:"message_short" json:"message_short,omitempty"`
	Title        string `db:"title"         json:"title,omitempty"`
	Culprit      string `db:"culprit"       json:"culprit,omitempty"`
	Level        Level  `db:"level"         json:"level"`
	TimesSeen    int    `db:"times_seen"    json:"times_seen"`
	FirstSeen    string `db:"first_seen"    json:"first_seen"`
	LastSeen     string `db:"last_seen"     json:"last_seen"`

	// URL is the canonical link to the group, derived at load time.
	URL string `db:"-" json:"url"`
}

// ShortMessage returns MessageShort when set, otherwise Message.
func (g *Group) ShortMessage() string {
	if g.MessageShort != "" {
		return g.MessageShort
	}
	return g.Message
}

// DisplayTitle returns Title when set, otherwise Culprit.
func (g *Group) DisplayTitle() string {
	if g.Title != "" {
		return g.Title
	}
	return g.Culprit
}

// Event is a single reported occurrence. Group, Project and Team are attached
// by the store when the event is loaded and are not persisted with the row.
type Event struct {
	ID         int64  `db:"id"          json:"id"`
	GroupID    int64  `db:"group_id"    json:"group_id"`
	ProjectID  int64  `db:"project_id"  json:"project_id"`
	EventID    string `db:"event_id"    json:"event_id"`
	Message    string `db:"message"     json:"message"`
	Level      Level  `db:"level"       json:"level"`
	Culprit    string `db:"culprit"     json:"culprit,omitempty"`
	ReceivedAt string `db:"received_at" json:"received_at"`

	Group   *Group   `db:"-" json:"group,omitempty"`
	Project *Project `db:"-" json:"project,omitempty"`
	Team    *Team    `db:"-" json:"team,omitempty"`
}
