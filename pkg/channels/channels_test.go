package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dotsetgreg/dotvoice/pkg/bus"
	"github.com/dotsetgreg/dotvoice/pkg/config"
)

type captureSpeaker struct {
	mu     sync.Mutex
	spoken []string
	got    chan string
}

func newCaptureSpeaker() *captureSpeaker {
	return &captureSpeaker{got: make(chan string, 8)}
}

func (s *captureSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	s.got <- text
	return nil
}

func (s *captureSpeaker) SetVoice(string) {}

type failingChannel struct {
	*BaseChannel
}

func (c *failingChannel) Start(context.Context) error { return errors.New("no network") }
func (c *failingChannel) Stop(context.Context) error  { return nil }
func (c *failingChannel) Send(context.Context, bus.OutboundMessage) error {
	return errors.New("not running")
}

func TestBaseChannel_IsAllowed(t *testing.T) {
	open := NewBaseChannel("test", nil, nil)
	if !open.IsAllowed("anyone") {
		t.Fatalf("empty allow list should allow everyone")
	}

	c := NewBaseChannel("test", nil, []string{"123", "@alice", " "})
	testcases := []struct {
		sender string
		want   bool
	}{
		{"123", true},
		{"123|bob", true},
		{"999|alice", true},
		{"alice", true},
		{"999", false},
		{"999|bob", false},
	}
	for _, tc := range testcases {
		if got := c.IsAllowed(tc.sender); got != tc.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tc.sender, got, tc.want)
		}
	}
}

func TestBaseChannel_HandleMessagePublishesInbound(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := NewBaseChannel(bus.ChannelDiscord, mb, []string{"7"})

	assert.False(t, c.HandleMessage("8", "42", "ignored", nil))
	require.True(t, c.HandleMessage("7", "42", "what time is it", map[string]string{"is_dm": "true"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, bus.InboundMessage{
		Channel:    bus.ChannelDiscord,
		SenderID:   "7",
		ChatID:     "42",
		Content:    "what time is it",
		SessionKey: "discord:42",
		Metadata:   map[string]string{"is_dm": "true"},
	}, msg)
}

func TestManager_RoutesOutboundToSpeech(t *testing.T) {
	defer goleak.VerifyNone(t)

	mb := bus.NewMessageBus()
	defer mb.Close()
	speaker := newCaptureSpeaker()
	m, err := NewManagerFromConfig(config.DefaultConfig(), mb, speaker)
	require.NoError(t, err)
	assert.Equal(t, []string{bus.ChannelVoice}, m.GetEnabledChannels())

	require.NoError(t, m.StartAll(context.Background()))
	mb.PublishOutbound(bus.OutboundMessage{Channel: "nowhere", Content: "dropped"})
	mb.Say(bus.KindReminder, "Reminder: stretch")

	select {
	case got := <-speaker.got:
		assert.Equal(t, "Reminder: stretch", got)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder was never spoken")
	}

	status := m.GetStatus()
	assert.Equal(t, map[string]interface{}{"enabled": true, "running": true}, status[bus.ChannelVoice])

	require.NoError(t, m.StopAll(context.Background()))
	ch, ok := m.GetChannel(bus.ChannelVoice)
	require.True(t, ok)
	assert.False(t, ch.IsRunning())
}

func TestManager_StartAllRollsBackOnFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	mb := bus.NewMessageBus()
	defer mb.Close()
	speech := NewSpeechChannel(newCaptureSpeaker())
	m := NewManager(mb, speech, &failingChannel{BaseChannel: NewBaseChannel("broken", mb, nil)})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: no network")
	assert.False(t, speech.IsRunning(), "partially started channels are stopped again")
}

func TestManager_SendToChannel(t *testing.T) {
	speaker := newCaptureSpeaker()
	speech := NewSpeechChannel(speaker)
	m := NewManager(nil, speech)

	require.Error(t, m.SendToChannel(context.Background(), bus.ChannelVoice, "", "too early"))
	require.NoError(t, speech.Start(context.Background()))
	require.NoError(t, m.SendToChannel(context.Background(), bus.ChannelVoice, "", "hello"))
	assert.Equal(t, "hello", <-speaker.got)
	assert.Error(t, m.SendToChannel(context.Background(), "missing", "", "x"))

	m.UnregisterChannel(bus.ChannelVoice)
	assert.Empty(t, m.GetEnabledChannels())
}

func TestNewManagerFromConfig_DiscordRequiresToken(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Enabled = true

	_, err := NewManagerFromConfig(cfg, bus.NewMessageBus(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestDiscordHelpers(t *testing.T) {
	assert.Equal(t, "what time is it", stripMention("<@55> what time is it", "55"))
	assert.Equal(t, "hi", stripMention(" <@!55>hi ", "55"))
	assert.Equal(t, "<@55> hi", stripMention("<@55> hi", ""))

	assert.Equal(t, "⏰ Reminder: stretch", formatOutbound(bus.OutboundMessage{Content: "Reminder: stretch", Kind: bus.KindReminder}))
	assert.Equal(t, "_Rebooting_", formatOutbound(bus.OutboundMessage{Content: "Rebooting", Kind: bus.KindStatus}))
	assert.Equal(t, "plain", formatOutbound(bus.OutboundMessage{Content: "plain", Kind: bus.KindReply}))

	assert.Equal(t, "abc...", preview("abcdef", 3))
	assert.Equal(t, "abc", preview("abc", 3))
}

func TestSplitMessage(t *testing.T) {
	short := "short reply"
	assert.Equal(t, []string{short}, splitMessage(short, 1500))

	long := strings.Repeat("word ", 700)
	chunks := splitMessage(long, 1500)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1500)
	}
	assert.Equal(t, strings.Fields(long), strings.Fields(strings.Join(chunks, " ")))
}
