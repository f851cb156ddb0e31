package reputation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_DefaultIsZero(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, 0, l.Get("pc", "cult_of_flame"))
}

func TestLedger_ApplyDelta(t *testing.T) {
	l := NewLedger()

	assert.Equal(t, 10, l.ApplyDelta("pc", "cult_of_flame", 10))
	assert.Equal(t, -5, l.ApplyDelta("pc", "cult_of_flame", -15))
	assert.Equal(t, -5, l.Get("pc", "cult_of_flame"))

	// Pairs are independent.
	assert.Equal(t, 0, l.Get("pc", "ember_syndicate"))
	assert.Equal(t, 0, l.Get("npc2", "cult_of_flame"))
}

func TestLedger_ClampIsSilent(t *testing.T) {
	l := NewLedger()

	assert.Equal(t, 100, l.ApplyDelta("pc", "cult", 250))
	assert.Equal(t, 100, l.Get("pc", "cult"))

	assert.Equal(t, -100, l.ApplyDelta("pc", "cult", -999))
	assert.Equal(t, -100, l.Get("pc", "cult"))

	// Moving back inside the range works normally after clamping.
	assert.Equal(t, -90, l.ApplyDelta("pc", "cult", 10))
}

func TestLedger_MeetsThreshold(t *testing.T) {
	l := NewLedger()
	l.ApplyDelta("pc", "cult", -30)

	min := -20
	max := -20
	assert.False(t, l.MeetsThreshold("pc", "cult", &min, nil), "below min fails")
	assert.True(t, l.MeetsThreshold("pc", "cult", nil, &max), "below max passes")
	assert.True(t, l.MeetsThreshold("pc", "cult", nil, nil), "no bounds always passes")

	both := -40
	assert.True(t, l.MeetsThreshold("pc", "cult", &both, &max))
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l := NewLedger()
	l.ApplyDelta("pc", "cult", 42)
	l.ApplyDelta("pc", "watch", -7)
	l.ApplyDelta("npc2", "cult", 3)
	// Zero scores are omitted from snapshots.
	l.ApplyDelta("npc3", "cult", 5)
	l.ApplyDelta("npc3", "cult", -5)

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 42, snap["pc"]["cult"])
	assert.NotContains(t, snap, "npc3")

	// Snapshot is a copy, not a view.
	snap["pc"]["cult"] = 99
	assert.Equal(t, 42, l.Get("pc", "cult"))

	l2 := NewLedger()
	l2.Restore(map[string]map[string]int{
		"pc": {"cult": 42, "broken": 500},
	})
	assert.Equal(t, 42, l2.Get("pc", "cult"))
	assert.Equal(t, 100, l2.Get("pc", "broken"), "restore re-clamps stale saves")
}

func TestLedger_ConcurrentDeltas(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.ApplyDelta("pc", "cult", 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.Get("pc", "cult"))
}
