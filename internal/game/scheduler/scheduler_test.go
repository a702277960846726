package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/inventory"
	"github.com/cory-johannsen/kater/internal/game/resource"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

var epoch = time.Unix(0, 0)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// countingStash records every Add call and delegates to an Inventory.
type countingStash struct {
	inv   *inventory.Inventory
	calls int
}

func (s *countingStash) Add(item inventory.Item, qty int) bool {
	s.calls++
	return s.inv.Add(item, qty)
}

func newFixture(t *testing.T) (*scheduler.Scheduler, *resource.State, *countingStash) {
	t.Helper()
	s := scheduler.New(action.DefaultCatalog())
	res := resource.New(resource.Caps{Energy: 100, Hitpoints: 100})
	return s, res, &countingStash{inv: inventory.New(12)}
}

func TestMiningScenario(t *testing.T) {
	s, res, stash := newFixture(t)

	pa, err := s.TryStart(action.Mining, 0, at(0), res)
	require.NoError(t, err)
	assert.Equal(t, 95, res.Energy())
	assert.Equal(t, at(5000), pa.End)
	assert.NotEqual(t, [16]byte{}, [16]byte(pa.ID))

	assert.Empty(t, s.Tick(at(4999), res, stash))
	st := s.Status(action.Mining, at(4999))
	assert.Equal(t, scheduler.Running, st.Phase)
	assert.Equal(t, time.Millisecond, st.Remaining)

	done := s.Tick(at(5000), res, stash)
	require.Len(t, done, 1)
	assert.Equal(t, action.Mining, done[0].Category)
	assert.Equal(t, 1, done[0].Experience)
	assert.True(t, done[0].Stored)
	assert.False(t, done[0].Forfeited())
	assert.Equal(t, 1, res.Experience())
	assert.Equal(t, 1, stash.inv.Quantity("Copper Ore"))
	assert.Equal(t, 1, stash.calls)
	assert.Equal(t, scheduler.Idle, s.Status(action.Mining, at(5000)).Phase)

	assert.Empty(t, s.Tick(at(10000), res, stash))
	assert.Equal(t, 1, stash.calls)
}

func TestTryStart_AlreadyRunning(t *testing.T) {
	s, res, _ := newFixture(t)
	_, err := s.TryStart(action.Fishing, 0, at(0), res)
	require.NoError(t, err)

	_, err = s.TryStart(action.Fishing, 1, at(10), res)
	var rej *scheduler.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)
	assert.Equal(t, action.Fishing, rej.Category)
	assert.Equal(t, 95, res.Energy())
	assert.Equal(t, "Carp", s.Status(action.Fishing, at(10)).Name)
}

func TestTryStart_AlreadyRunningCheckedBeforeTier(t *testing.T) {
	s, res, _ := newFixture(t)
	_, err := s.TryStart(action.Fishing, 0, at(0), res)
	require.NoError(t, err)

	_, err = s.TryStart(action.Fishing, 9, at(0), res)
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)
}

func TestTryStart_InsufficientEnergyLeavesStateUntouched(t *testing.T) {
	s, _, _ := newFixture(t)
	res, err := resource.Restore(resource.Caps{Energy: 100, Hitpoints: 100},
		resource.Values{Energy: 29, Hitpoints: 50, Balance: 3, Level: 1, Experience: 7}, nil)
	require.NoError(t, err)
	before := res.Snapshot()

	_, err = s.TryStart(action.Explore, 2, at(0), res)
	var rej *scheduler.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.ErrorIs(t, err, scheduler.ErrInsufficientEnergy)
	assert.Equal(t, 30, rej.Need)
	assert.Equal(t, 29, rej.Have)
	assert.Contains(t, err.Error(), "need 30")
	assert.Equal(t, before, res.Snapshot())
	assert.Equal(t, scheduler.Idle, s.Status(action.Explore, at(0)).Phase)
	assert.Empty(t, s.Pending())
}

func TestTryStart_ExactEnergyAccepted(t *testing.T) {
	s, _, _ := newFixture(t)
	res, err := resource.Restore(resource.Caps{Energy: 100, Hitpoints: 100},
		resource.Values{Energy: 10, Hitpoints: 100, Level: 1}, nil)
	require.NoError(t, err)
	_, err = s.TryStart(action.Explore, 0, at(0), res)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Energy())
}

func TestTryStart_UnknownTier(t *testing.T) {
	s, res, _ := newFixture(t)
	_, err := s.TryStart(action.Woodcutting, 5, at(0), res)
	assert.ErrorIs(t, err, action.ErrUnknownTier)
	assert.Equal(t, 100, res.Energy())

	_, err = s.TryStart(action.Category(99), 0, at(0), res)
	assert.ErrorIs(t, err, action.ErrUnknownCategory)
}

func TestTick_ExploreHasNoYield(t *testing.T) {
	s, res, stash := newFixture(t)
	_, err := s.TryStart(action.Explore, 1, at(0), res)
	require.NoError(t, err)

	done := s.Tick(at(10000), res, stash)
	require.Len(t, done, 1)
	assert.Equal(t, 20, res.Experience())
	assert.Zero(t, done[0].Quantity)
	assert.False(t, done[0].Forfeited())
	assert.Zero(t, stash.calls)
}

func TestTick_FullInventoryForfeitsItem(t *testing.T) {
	s, res, _ := newFixture(t)
	stash := &countingStash{inv: inventory.New(1)}
	require.True(t, stash.inv.Add(inventory.NewItem("A"), 1))

	_, err := s.TryStart(action.Herbalism, 0, at(0), res)
	require.NoError(t, err)
	done := s.Tick(at(5000), res, stash)
	require.Len(t, done, 1)
	assert.False(t, done[0].Stored)
	assert.True(t, done[0].Forfeited())
	assert.Equal(t, 1, res.Experience())
	assert.Equal(t, 1, stash.inv.Len())
	assert.Equal(t, 1, stash.inv.Quantity("A"))
	assert.Zero(t, stash.inv.Quantity("Mugwort"))
}

func TestTick_ResolvesInDeclarationOrder(t *testing.T) {
	s, res, stash := newFixture(t)
	for _, c := range []action.Category{action.Explore, action.Divination, action.Mining} {
		_, err := s.TryStart(c, 0, at(0), res)
		require.NoError(t, err)
	}
	done := s.Tick(at(60000), res, stash)
	require.Len(t, done, 3)
	assert.Equal(t, action.Mining, done[0].Category)
	assert.Equal(t, action.Divination, done[1].Category)
	assert.Equal(t, action.Explore, done[2].Category)
}

func TestTick_OnlyDueActionsResolve(t *testing.T) {
	s, res, stash := newFixture(t)
	_, err := s.TryStart(action.Mining, 0, at(0), res)
	require.NoError(t, err)
	_, err = s.TryStart(action.Woodcutting, 1, at(0), res)
	require.NoError(t, err)

	done := s.Tick(at(5000), res, stash)
	require.Len(t, done, 1)
	assert.Equal(t, action.Mining, done[0].Category)
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, action.Woodcutting, s.Pending()[0].Definition.Category)
}

func TestReset(t *testing.T) {
	s, res, stash := newFixture(t)
	_, err := s.TryStart(action.Mining, 0, at(0), res)
	require.NoError(t, err)
	s.Reset()
	assert.Empty(t, s.Pending())
	assert.Empty(t, s.Tick(at(5000), res, stash))
}

func TestStatus_InvalidCategoryIsIdle(t *testing.T) {
	s, _, _ := newFixture(t)
	assert.Equal(t, scheduler.Idle, s.Status(action.Category(-1), at(0)).Phase)
}

func TestProperty_AtMostOneRunningPerCategory(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := scheduler.New(action.DefaultCatalog())
		res := resource.New(resource.Caps{Energy: 100, Hitpoints: 100})
		stash := inventory.New(12)
		now := 0
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			now += rapid.IntRange(0, 4000).Draw(rt, "advance")
			if rapid.Bool().Draw(rt, "tick") {
				s.Tick(at(now), res, stash)
				continue
			}
			c := rapid.SampledFrom(action.Categories[:]).Draw(rt, "category")
			tier := rapid.IntRange(0, 2).Draw(rt, "tier")
			_, _ = s.TryStart(c, tier, at(now), res)

			seen := map[action.Category]bool{}
			for _, pa := range s.Pending() {
				if seen[pa.Definition.Category] {
					rt.Fatalf("category %s running twice", pa.Definition.Category)
				}
				seen[pa.Definition.Category] = true
			}
		}
	})
}

func TestProperty_RejectedStartIsSideEffectFree(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		energy := rapid.IntRange(0, 100).Draw(rt, "energy")
		res, err := resource.Restore(resource.Caps{Energy: 100, Hitpoints: 100},
			resource.Values{Energy: energy, Hitpoints: 100, Level: 1}, nil)
		if err != nil {
			rt.Fatal(err)
		}
		s := scheduler.New(action.DefaultCatalog())
		c := rapid.SampledFrom(action.Categories[:]).Draw(rt, "category")
		tier := rapid.IntRange(0, 1).Draw(rt, "tier")
		before := res.Snapshot()
		if _, err := s.TryStart(c, tier, at(0), res); err != nil {
			if !assert.ObjectsAreEqual(before, res.Snapshot()) {
				rt.Fatalf("rejected start mutated state: %v", err)
			}
			if len(s.Pending()) != 0 {
				rt.Fatalf("rejected start left a pending action")
			}
		}
	})
}
