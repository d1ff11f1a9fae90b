package notify

// Payload is the JSON document posted to a Slack incoming webhook.
type Payload struct {
	Parse       string       `json:"parse"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Channel     string       `json:"channel,omitempty"`
}

// Attachment is a color-coded block under the message text.
type Attachment struct {
	Color  string  `json:"color"`
	Fields []Field `json:"fields"`
}

// Field is a single title/value pair inside an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// BuildPayload renders msg for delivery. The attachment is only present when
// msg has a title; channel is only set when room is non-empty.
func BuildPayload(msg Message, room string) Payload {
	p := Payload{
		Parse: "none",
		Text:  msg.Text,
	}
	if msg.Title != "" {
		p.Attachments = []Attachment{{
			Color: "#" + msg.Color,
			Fields: []Field{{
				Title: msg.Title,
				Value: msg.Detail,
				Short: false,
			}},
		}}
	}
	if room != "" {
		p.Channel = room
	}
	return p
}
