package profile

import (
	"strings"
	"sync"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

// Context is the live, shared profile. Readers take snapshots; writers
// persist through the store when one is attached and notify subscribers.
type Context struct {
	// saveMu orders persistence so the file always holds the latest update.
	saveMu      sync.Mutex
	mu          sync.RWMutex
	profile     Profile
	store       *Store
	subscribers []func(Profile)
}

func NewContext(p Profile, store *Store) *Context {
	return &Context{profile: p.Normalize(), store: store}
}

// LoadContext reads the profile from store, falling back to defaults.
func LoadContext(store *Store) *Context {
	p, err := store.Load()
	if err != nil {
		logger.WarnCF("profile", "Failed to load profile; using defaults", map[string]interface{}{
			"path":  store.Path(),
			"error": err.Error(),
		})
	}
	return NewContext(p, store)
}

func (c *Context) Snapshot() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := c.profile
	p.WakeWords = append([]string(nil), c.profile.WakeWords...)
	return p
}

func (c *Context) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile.UserName
}

// WakeWords returns a copy of the current wake set.
func (c *Context) WakeWords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.profile.WakeWords...)
}

// Subscribe registers fn to run after every change.
func (c *Context) Subscribe(fn func(Profile)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// SwitchPersona sets the persona and its voice. Unknown personas keep their
// name and get the default voice.
func (c *Context) SwitchPersona(name string) Profile {
	return c.update(func(p *Profile) {
		p.Persona = strings.ToLower(strings.TrimSpace(name))
		p.Voice = VoiceFor(p.Persona)
	})
}

func (c *Context) SetSummary(summary string) Profile {
	return c.update(func(p *Profile) { p.Summary = summary })
}

func (c *Context) SetWakeWords(words []string) Profile {
	return c.update(func(p *Profile) { p.WakeWords = words })
}

func (c *Context) SetUserName(name string) Profile {
	return c.update(func(p *Profile) { p.UserName = name })
}

func (c *Context) update(mutate func(*Profile)) Profile {
	c.saveMu.Lock()
	c.mu.Lock()
	next := c.profile
	next.WakeWords = append([]string(nil), c.profile.WakeWords...)
	mutate(&next)
	next = next.Normalize()
	c.profile = next
	store := c.store
	subs := make([]func(Profile), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if store != nil {
		if _, err := store.Save(next); err != nil {
			logger.WarnCF("profile", "Failed to persist profile", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	c.saveMu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}
