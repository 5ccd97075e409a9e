package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	DataDir   string          `json:"data_dir" env:"DOTVOICE_DATA_DIR"`
	LogLevel  string          `json:"log_level" env:"DOTVOICE_LOG_LEVEL"`
	Assistant AssistantConfig `json:"assistant"`
	Provider  ProviderConfig  `json:"provider"`
	Memory    MemoryConfig    `json:"memory"`
	Listener  ListenerConfig  `json:"listener"`
	Reminders RemindersConfig `json:"reminders"`
	Tools     ToolsConfig     `json:"tools"`
	Skills    SkillsConfig    `json:"skills"`
	Channels  ChannelsConfig  `json:"channels"`
	mu        sync.RWMutex
}

type AssistantConfig struct {
	Model              string   `json:"model" env:"DOTVOICE_ASSISTANT_MODEL"`
	MaxTokens          int      `json:"max_tokens" env:"DOTVOICE_ASSISTANT_MAX_TOKENS"`
	Temperature        float64  `json:"temperature" env:"DOTVOICE_ASSISTANT_TEMPERATURE"`
	RateInPerMillion   float64  `json:"rate_in_per_million" env:"DOTVOICE_ASSISTANT_RATE_IN"`
	RateOutPerMillion  float64  `json:"rate_out_per_million" env:"DOTVOICE_ASSISTANT_RATE_OUT"`
	StartingBalance    float64  `json:"starting_balance" env:"DOTVOICE_ASSISTANT_BALANCE"`
	ContinuousMode     bool     `json:"continuous_mode" env:"DOTVOICE_ASSISTANT_CONTINUOUS"`
	ReengagePauseMS    int      `json:"reengage_pause_ms" env:"DOTVOICE_ASSISTANT_REENGAGE_PAUSE_MS"`
	TerminationPhrases []string `json:"termination_phrases" env:"DOTVOICE_ASSISTANT_TERMINATION_PHRASES"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"DOTVOICE_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"DOTVOICE_PROVIDER_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"DOTVOICE_PROVIDER_PROXY"`
}

type MemoryConfig struct {
	CompactThreshold  int `json:"compact_threshold" env:"DOTVOICE_MEMORY_COMPACT_THRESHOLD"`
	CompactWindow     int `json:"compact_window" env:"DOTVOICE_MEMORY_COMPACT_WINDOW"`
	SummaryUsers      int `json:"summary_users" env:"DOTVOICE_MEMORY_SUMMARY_USERS"`
	SummaryAssistants int `json:"summary_assistants" env:"DOTVOICE_MEMORY_SUMMARY_ASSISTANTS"`
	SummaryMaxChars   int `json:"summary_max_chars" env:"DOTVOICE_MEMORY_SUMMARY_MAX_CHARS"`
}

type ListenerConfig struct {
	Enabled      bool `json:"enabled" env:"DOTVOICE_LISTENER_ENABLED"`
	IdleMS       int  `json:"idle_ms" env:"DOTVOICE_LISTENER_IDLE_MS"`
	CooldownMS   int  `json:"cooldown_ms" env:"DOTVOICE_LISTENER_COOLDOWN_MS"`
	RetryDelayMS int  `json:"retry_delay_ms" env:"DOTVOICE_LISTENER_RETRY_DELAY_MS"`
	WindowMS     int  `json:"window_ms" env:"DOTVOICE_LISTENER_WINDOW_MS"`
	// ListenMS bounds how long a turn waits for an utterance; zero waits forever.
	ListenMS     int  `json:"listen_ms" env:"DOTVOICE_LISTENER_LISTEN_MS"`
}

type RemindersConfig struct {
	PollMS    int    `json:"poll_ms" env:"DOTVOICE_REMINDERS_POLL_MS"`
	StorePath string `json:"store_path" env:"DOTVOICE_REMINDERS_STORE_PATH"`
	NotifyTo  string `json:"notify_to" env:"DOTVOICE_REMINDERS_NOTIFY_TO"`
}

type ToolsConfig struct {
	// ConfirmPolicy is one of "ask", "allow" or "deny".
	ConfirmPolicy string `json:"confirm_policy" env:"DOTVOICE_TOOLS_CONFIRM_POLICY"`
	ProtocolsPath string `json:"protocols_path" env:"DOTVOICE_TOOLS_PROTOCOLS_PATH"`
	SearchURL     string `json:"search_url" env:"DOTVOICE_TOOLS_SEARCH_URL"`
	DryRun        bool   `json:"dry_run" env:"DOTVOICE_TOOLS_DRY_RUN"`
}

type SkillsConfig struct {
	UserDir    string `json:"user_dir" env:"DOTVOICE_SKILLS_USER_DIR"`
	BundledDir string `json:"bundled_dir" env:"DOTVOICE_SKILLS_BUNDLED_DIR"`
	Watch      bool   `json:"watch" env:"DOTVOICE_SKILLS_WATCH"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" env:"DOTVOICE_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" env:"DOTVOICE_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DOTVOICE_CHANNELS_DISCORD_ALLOW_FROM"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:  "~/.dotvoice",
		LogLevel: "info",
		Assistant: AssistantConfig{
			Model:             "gpt-4o",
			MaxTokens:         1024,
			Temperature:       0.7,
			RateInPerMillion:  2.50,
			RateOutPerMillion: 10.00,
			StartingBalance:   5.00,
			ContinuousMode:    true,
			ReengagePauseMS:   500,
			TerminationPhrases: []string{
				"stop listening",
				"go to sleep",
				"terminate session",
				"thank you mavrick",
				"that's all",
			},
		},
		Provider: ProviderConfig{
			APIBase: "https://api.openai.com/v1",
		},
		Memory: MemoryConfig{
			CompactThreshold:  30,
			CompactWindow:     15,
			SummaryUsers:      3,
			SummaryAssistants: 2,
			SummaryMaxChars:   800,
		},
		Listener: ListenerConfig{
			Enabled:      true,
			IdleMS:       1000,
			CooldownMS:   2000,
			RetryDelayMS: 2000,
			WindowMS:     2000,
			ListenMS:     15000,
		},
		Reminders: RemindersConfig{
			PollMS: 2000,
		},
		Tools: ToolsConfig{
			ConfirmPolicy: "ask",
			SearchURL:     "https://www.google.com/search?q=",
		},
		Skills: SkillsConfig{
			Watch: true,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				AllowFrom: FlexibleStringSlice{},
			},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.DataDir)
}

// Resolve joins name under the data dir unless override is set.
func (c *Config) Resolve(override, name string) string {
	if override != "" {
		return expandHome(override)
	}
	return filepath.Join(c.DataPath(), name)
}

func (c *Config) ReminderStorePath() string {
	return c.Resolve(c.Reminders.StorePath, "reminders.json")
}

func (c *Config) ProtocolsPath() string {
	return c.Resolve(c.Tools.ProtocolsPath, "protocols.yaml")
}

func (c *Config) ProfilePath() string {
	return c.Resolve("", "profile.json")
}

func (c *Config) JournalPath() string {
	return c.Resolve("", filepath.Join("state", "journal.db"))
}

func (c *Config) UserSkillsDir() string {
	return c.Resolve(c.Skills.UserDir, "skills")
}

func (c *Config) BundledSkillsDir() string {
	if c.Skills.BundledDir == "" {
		return ""
	}
	return expandHome(c.Skills.BundledDir)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Provider.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Provider.APIBase != "" {
		return c.Provider.APIBase
	}
	return "https://api.openai.com/v1"
}

func Millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
