package savefile_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/kater/internal/game/inventory"
	"github.com/cory-johannsen/kater/internal/game/resource"
	"github.com/cory-johannsen/kater/internal/game/savefile"
)

func sampleRecord() savefile.Record {
	return savefile.Record{
		Values: resource.Values{Energy: 95, Hitpoints: 100, Balance: 12, Level: 1, Experience: 3},
		Skills: []resource.Skill{
			{Name: "mining", SkillProgress: resource.SkillProgress{Level: 1, Experience: 2}},
			{Name: "fishing", SkillProgress: resource.SkillProgress{Level: 2, Experience: 0}},
		},
		Items: []inventory.Slot{
			{Item: inventory.NewItem("Copper Ore"), Quantity: 2},
			{Item: inventory.NewItem("Carp"), Quantity: 1},
		},
	}
}

func TestMarshal_Layout(t *testing.T) {
	data, err := savefile.Marshal(sampleRecord())
	require.NoError(t, err)
	want := "95 100 12 1 3\n" +
		"mining 1,2;fishing 2,0\n" +
		"Copper Ore,copper_ore.png,2\n" +
		"Carp,carp.png,1\n"
	assert.Equal(t, want, string(data))
}

func TestMarshal_EmptySkillsAndItems(t *testing.T) {
	data, err := savefile.Marshal(savefile.Record{Values: resource.Values{Energy: 100, Hitpoints: 100, Level: 1}})
	require.NoError(t, err)
	assert.Equal(t, "100 100 0 1 0\n\n", string(data))

	rec, err := savefile.Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, rec.Skills)
	assert.Empty(t, rec.Items)
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	want := sampleRecord()
	data, err := savefile.Marshal(want)
	require.NoError(t, err)
	got, err := savefile.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, err := savefile.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestUnmarshal_SkipsBlankItemLines(t *testing.T) {
	rec, err := savefile.Unmarshal([]byte("1 2 3 4 5\n\nOak Log,oak_log.png,4\n\n\n"))
	require.NoError(t, err)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, 4, rec.Items[0].Quantity)
}

func TestUnmarshal_Malformed(t *testing.T) {
	cases := []struct {
		name string
		data string
		line int
	}{
		{"empty", "", 0},
		{"four values", "1 2 3 4\n\n", 1},
		{"six values", "1 2 3 4 5 6\n\n", 1},
		{"non integer", "1 2 x 4 5\n\n", 1},
		{"missing skills line", "1 2 3 4 5\n", 2},
		{"skill without progress", "1 2 3 4 5\nmining\n", 2},
		{"skill bad level", "1 2 3 4 5\nmining a,1\n", 2},
		{"skill zero level", "1 2 3 4 5\nmining 0,1\n", 2},
		{"skill repeated", "1 2 3 4 5\nmining 1,1;mining 1,2\n", 2},
		{"item two fields", "1 2 3 4 5\n\nCarp,3\n", 3},
		{"item four fields", "1 2 3 4 5\n\nCarp,carp.png,3,4\n", 3},
		{"item bad quantity", "1 2 3 4 5\n\nCarp,carp.png,lots\n", 3},
		{"item zero quantity", "1 2 3 4 5\n\nCarp,carp.png,0\n", 3},
		{"item repeated", "1 2 3 4 5\n\nCarp,carp.png,1\nCarp,carp.png,2\n", 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := savefile.Unmarshal([]byte(tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, savefile.ErrMalformed)
			var le *savefile.LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tc.line, le.Line)
		})
	}
}

func TestMarshal_RejectsUnencodableNames(t *testing.T) {
	rec := sampleRecord()
	rec.Skills[0].Name = "deep sea"
	_, err := savefile.Marshal(rec)
	assert.Error(t, err)

	rec = sampleRecord()
	rec.Items[0].Item.Name = "a,b"
	_, err = savefile.Marshal(rec)
	assert.Error(t, err)
}

func TestLoadError_Message(t *testing.T) {
	err := &savefile.LoadError{Line: 3, Reason: "bad"}
	assert.True(t, strings.HasSuffix(err.Error(), "line 3: bad"))
}

func genRecord(t *rapid.T) savefile.Record {
	rec := savefile.Record{
		Values: resource.Values{
			Energy:     rapid.IntRange(0, 100).Draw(t, "energy"),
			Hitpoints:  rapid.IntRange(0, 100).Draw(t, "hitpoints"),
			Balance:    rapid.IntRange(0, 1_000_000).Draw(t, "balance"),
			Level:      rapid.IntRange(1, 99).Draw(t, "level"),
			Experience: rapid.IntRange(0, 1_000_000).Draw(t, "experience"),
		},
	}
	skillNames := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,10}`), rapid.ID[string]).Draw(t, "skills")
	for _, name := range skillNames {
		rec.Skills = append(rec.Skills, resource.Skill{Name: name, SkillProgress: resource.SkillProgress{
			Level:      rapid.IntRange(1, 99).Draw(t, "skill_level"),
			Experience: rapid.IntRange(0, 10_000).Draw(t, "skill_xp"),
		}})
	}
	itemNames := rapid.SliceOfDistinct(rapid.StringMatching(`[A-Z][a-z]{0,8}( [A-Z][a-z]{0,8})?`), rapid.ID[string]).Draw(t, "items")
	for _, name := range itemNames {
		rec.Items = append(rec.Items, inventory.Slot{
			Item:     inventory.NewItem(name),
			Quantity: rapid.IntRange(1, 500).Draw(t, "qty"),
		})
	}
	return rec
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := genRecord(t)
		data, err := savefile.Marshal(want)
		if err != nil {
			t.Fatal(err)
		}
		got, err := savefile.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if !assert.ObjectsAreEqual(want, got) {
			t.Fatalf("round trip mismatch:\nwant %+v\n got %+v", want, got)
		}
	})
}
