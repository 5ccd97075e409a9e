package profile

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_SwitchPersonaPersistsAndNotifies(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	ctx := LoadContext(store)

	var notified []Profile
	ctx.Subscribe(func(p Profile) { notified = append(notified, p) })

	p := ctx.SwitchPersona("JARVIS")
	assert.Equal(t, "jarvis", p.Persona)
	assert.Equal(t, "fable", p.Voice)
	require.Len(t, notified, 1)
	assert.Equal(t, "fable", notified[0].Voice)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "jarvis", persisted.Persona)
}

func TestContext_UnknownPersonaKeepsNameWithDefaultVoice(t *testing.T) {
	ctx := NewContext(Default(), nil)
	p := ctx.SwitchPersona("hal")
	assert.Equal(t, "hal", p.Persona)
	assert.Equal(t, DefaultVoice, p.Voice)
}

func TestContext_SnapshotIsCopy(t *testing.T) {
	ctx := NewContext(Default(), nil)
	snap := ctx.Snapshot()
	snap.WakeWords[0] = "mutated"
	assert.Equal(t, "computer", ctx.WakeWords()[0])
}

func TestContext_SetWakeWordsAndSummary(t *testing.T) {
	ctx := NewContext(Default(), nil)
	ctx.SetWakeWords([]string{"Friday", "  "})
	assert.Equal(t, []string{"friday"}, ctx.WakeWords())

	ctx.SetWakeWords(nil)
	assert.Equal(t, DefaultWakeWords(), ctx.WakeWords())

	ctx.SetSummary("User recently said: hi.")
	assert.Equal(t, "User recently said: hi.", ctx.Snapshot().Summary)

	ctx.SetUserName("Grace")
	assert.Equal(t, "Grace", ctx.UserName())
}

func TestContext_ConcurrentUpdatesPersistLatest(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "profile.json"))
	ctx := LoadContext(store)

	var seen sync.Map
	ctx.Subscribe(func(p Profile) { seen.Store(p.Summary, true) })

	personas := Personas()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ctx.SetSummary(fmt.Sprintf("summary %d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			ctx.SwitchPersona(personas[i%len(personas)])
		}(i)
	}
	wg.Wait()

	want := ctx.Snapshot()
	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Summary, persisted.Summary)
	assert.Equal(t, want.Persona, persisted.Persona)
	assert.Equal(t, want.Voice, persisted.Voice)

	_, ok := seen.Load(want.Summary)
	assert.True(t, ok, "subscribers see the final update")
}
