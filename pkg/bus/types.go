package bus

// Output kinds carried on OutboundMessage.Kind.
const (
	KindReply    = "reply"
	KindReminder = "reminder"
	KindStatus   = "status"
)

// Channel names shared by producers and the channel manager.
const (
	ChannelVoice   = "voice"
	ChannelDiscord = "discord"
)

// InboundMessage is a text utterance arriving from a remote channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Media      []string          `json:"media,omitempty"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is something the assistant wants said or sent.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}
