package channels

import (
	"context"
	"fmt"

	"github.com/dotsetgreg/dotvoice/pkg/bus"
	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

// SpeechChannel renders outbound messages through the local speaker. Turn
// replies are spoken by the orchestrator directly; this channel carries
// everything produced outside a turn, such as reminders.
type SpeechChannel struct {
	*BaseChannel
	speaker voice.Speaker
}

func NewSpeechChannel(speaker voice.Speaker) *SpeechChannel {
	return &SpeechChannel{
		BaseChannel: NewBaseChannel(bus.ChannelVoice, nil, nil),
		speaker:     speaker,
	}
}

func (c *SpeechChannel) Start(ctx context.Context) error {
	if c.speaker == nil {
		return fmt.Errorf("speech channel has no speaker")
	}
	c.setRunning(true)
	return nil
}

func (c *SpeechChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *SpeechChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("speech channel not running")
	}
	if msg.Content == "" {
		return nil
	}
	logger.DebugCF("voice", "Speaking outbound message", map[string]interface{}{
		"kind": msg.Kind,
	})
	return c.speaker.Speak(ctx, msg.Content)
}
