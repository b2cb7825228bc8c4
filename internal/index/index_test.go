package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

func post(id, title string, distance float64) manifest.PostMeta {
	return manifest.PostMeta{
		Title:   title,
		Date:    1000,
		Metrics: manifest.DerivedMetrics{Distance: distance, Duration: distance * 300, Elevation: distance * 10},
		Main:    entity.StorageIdentifier{ObjectID: id},
	}
}

func hitIDs(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.PostID)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{"simple", "Morning Run", []string{"morning", "run"}},
		{"extra space", "  Trail \t  Run\n", []string{"trail", "run"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Tokenize(tt.title))
		})
	}
}

func TestSearchByTitle_AndSemantics(t *testing.T) {
	c := NewCollection()
	c.AddPost(post("p1", "Morning Trail Run", 10), 0)
	c.AddPost(post("p2", "Evening Trail Walk", 4), 0)

	assert.Equal(t, []string{"p1"}, hitIDs(c.SearchByTitle("trail run")))
	assert.Equal(t, []string{"p1", "p2"}, hitIDs(c.SearchByTitle("TRAIL")))
	assert.Empty(t, c.SearchByTitle("trail swim"))
	assert.Empty(t, c.SearchByTitle(""))

	hits := c.SearchByTitle("evening")
	require.Len(t, hits, 1)
	assert.Equal(t, "Evening Trail Walk", hits[0].Locator.Title)
}

func TestAddPost_NoDuplicateWords(t *testing.T) {
	c := NewCollection()
	c.AddPost(post("p1", "run run RUN", 1), 0)

	assert.Equal(t, []string{"p1"}, c.WordIndex["run"])
}

func TestAddPost_MetricOrder(t *testing.T) {
	c := NewCollection()
	c.AddPost(post("mid", "a", 5), 0)
	c.AddPost(post("low", "b", 1), 0)
	c.AddPost(post("high", "c", 9), 1)
	c.AddPost(post("tie", "d", 5), 1)

	want := []PostReference{
		{PostID: "high", SortValue: 9},
		{PostID: "mid", SortValue: 5},
		{PostID: "tie", SortValue: 5},
		{PostID: "low", SortValue: 1},
	}
	if diff := cmp.Diff(want, c.ByDistance); diff != "" {
		t.Errorf("ByDistance mismatch (-want +got):\n%s", diff)
	}

	top, err := c.TopBy(PartByElevation, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid"}, top)

	_, err = c.TopBy(PartWordIndex, 1)
	assert.Error(t, err)
}

func TestAddPost_Categories(t *testing.T) {
	c := NewCollection()

	a := post("a", "x", 1)
	a.Type, a.Gear = "run", "shoes"
	b := post("b", "y", 1)
	b.Type = "ride"
	d := post("d", "z", 1)
	d.Type, d.Gear = "run", "shoes"

	c.AddPost(a, 0)
	c.AddPost(b, 0)
	c.AddPost(d, 2)

	assert.Equal(t, map[int]string{1: "run", 2: "ride"}, c.TypeMap)
	assert.Equal(t, map[int]string{1: "shoes"}, c.GearMap)
	assert.Equal(t, []string{"a", "d"}, c.ByType[1])
	assert.Equal(t, []string{"b"}, c.ByType[2])
	assert.Equal(t, []string{"a", "d"}, c.ByGear[1])

	assert.Equal(t, Locator{PageIndex: 2, Title: "z", Date: 1000, TypeID: 1, GearID: 1, Metrics: d.Metrics}, c.PostLocator["d"])
	assert.Zero(t, c.PostLocator["b"].GearID)
}

func TestParts(t *testing.T) {
	c := NewCollection()
	p := post("p1", "Morning Trail Run", 10)
	p.Type = "run"
	c.AddPost(p, 3)

	restored := NewCollection()
	for _, name := range Parts {
		data, err := c.EncodePart(name)
		require.NoError(t, err, name)
		require.NoError(t, restored.DecodePart(name, data), name)
	}
	restored.TypeMap = c.TypeMap
	restored.GearMap = c.GearMap

	if diff := cmp.Diff(c, restored); diff != "" {
		t.Errorf("restored collection mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"p1"}, hitIDs(restored.SearchByTitle("trail run")))

	_, err := c.EncodePart("nope")
	assert.Error(t, err)
	assert.Error(t, c.DecodePart("nope", nil))
	assert.Error(t, c.DecodePart(PartWordIndex, []byte{0xff}))
}

func TestClone(t *testing.T) {
	c := NewCollection()
	c.AddPost(post("p1", "Morning Run", 3), 0)

	cp := c.Clone()
	cp.AddPost(post("p2", "Evening Run", 5), 1)

	assert.Equal(t, []string{"p1"}, c.WordIndex["run"])
	assert.Len(t, c.ByDistance, 1)
	assert.Len(t, c.PostLocator, 1)
	assert.Equal(t, []string{"p1", "p2"}, cp.WordIndex["run"])
}
