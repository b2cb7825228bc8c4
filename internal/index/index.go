// Package index maintains the per-user search structures over posts: metric
// rankings, category buckets and a title word index.
package index

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// Names of the persisted parts of a Collection.
const (
	PartByDistance  = "byDistance"
	PartByDuration  = "byDuration"
	PartByElevation = "byElevation"
	PartByType      = "byType"
	PartByGear      = "byGear"
	PartWordIndex   = "wordIndex"
	PartPostLocator = "postLocator"
)

// Parts lists every part name in a stable order.
var Parts = []string{
	PartByDistance,
	PartByDuration,
	PartByElevation,
	PartByType,
	PartByGear,
	PartWordIndex,
	PartPostLocator,
}

type PostReference struct {
	PostID    string  `cbor:"postId"`
	SortValue float64 `cbor:"sortValue"`
}

// Locator is enough to render a search hit without fetching its page.
// TypeID and GearID are zero when the post has no category.
type Locator struct {
	PageIndex int                     `cbor:"pageIndex"`
	Title     string                  `cbor:"title"`
	Date      int64                   `cbor:"date"`
	TypeID    int                     `cbor:"typeId,omitempty"`
	GearID    int                     `cbor:"gearId,omitempty"`
	Metrics   manifest.DerivedMetrics `cbor:"metrics"`
}

type Collection struct {
	ByDistance  []PostReference
	ByDuration  []PostReference
	ByElevation []PostReference
	ByType      map[int][]string
	ByGear      map[int][]string
	WordIndex   map[string][]string
	PostLocator map[string]Locator
	TypeMap     map[int]string
	GearMap     map[int]string
}

func NewCollection() *Collection {
	return &Collection{
		ByDistance:  []PostReference{},
		ByDuration:  []PostReference{},
		ByElevation: []PostReference{},
		ByType:      map[int][]string{},
		ByGear:      map[int][]string{},
		WordIndex:   map[string][]string{},
		PostLocator: map[string]Locator{},
		TypeMap:     map[int]string{},
		GearMap:     map[int]string{},
	}
}

// Tokenize lower-cases a title and splits it on whitespace.
func Tokenize(title string) []string {
	return strings.Fields(strings.ToLower(title))
}

// AddPost indexes meta, which lives on page pageIndex.
func (c *Collection) AddPost(meta manifest.PostMeta, pageIndex int) {
	postID := manifest.PostID(meta)

	c.ByDistance = insertSorted(c.ByDistance, PostReference{PostID: postID, SortValue: meta.Metrics.Distance})
	c.ByDuration = insertSorted(c.ByDuration, PostReference{PostID: postID, SortValue: meta.Metrics.Duration})
	c.ByElevation = insertSorted(c.ByElevation, PostReference{PostID: postID, SortValue: meta.Metrics.Elevation})

	loc := Locator{
		PageIndex: pageIndex,
		Title:     meta.Title,
		Date:      meta.Date,
		Metrics:   meta.Metrics,
	}

	if meta.Type != "" {
		loc.TypeID = assignID(c.TypeMap, meta.Type)
		c.ByType[loc.TypeID] = append(c.ByType[loc.TypeID], postID)
	}
	if meta.Gear != "" {
		loc.GearID = assignID(c.GearMap, meta.Gear)
		c.ByGear[loc.GearID] = append(c.ByGear[loc.GearID], postID)
	}

	for _, word := range Tokenize(meta.Title) {
		if !slices.Contains(c.WordIndex[word], postID) {
			c.WordIndex[word] = append(c.WordIndex[word], postID)
		}
	}

	c.PostLocator[postID] = loc
}

// Hit is one search result.
type Hit struct {
	PostID  string
	Locator Locator
}

// SearchByTitle returns the posts whose titles contain every query word.
// Results follow the order in which posts were indexed for the first word.
func (c *Collection) SearchByTitle(query string) []Hit {
	tokens := lo.Uniq(Tokenize(query))
	if len(tokens) == 0 {
		return nil
	}

	candidates := c.WordIndex[tokens[0]]
	for _, token := range tokens[1:] {
		ids := c.WordIndex[token]
		candidates = lo.Filter(candidates, func(id string, _ int) bool { return slices.Contains(ids, id) })
	}

	hits := make([]Hit, 0, len(candidates))
	for _, id := range candidates {
		loc, ok := c.PostLocator[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{PostID: id, Locator: loc})
	}
	return hits
}

// TopBy returns up to n post ids ranked by one of the metric parts.
func (c *Collection) TopBy(part string, n int) ([]string, error) {
	var refs []PostReference
	switch part {
	case PartByDistance:
		refs = c.ByDistance
	case PartByDuration:
		refs = c.ByDuration
	case PartByElevation:
		refs = c.ByElevation
	default:
		return nil, fmt.Errorf("not a ranked part: %q", part)
	}

	if n > len(refs) {
		n = len(refs)
	}
	return lo.Map(refs[:n], func(r PostReference, _ int) string { return r.PostID }), nil
}

// insertSorted keeps refs in descending SortValue order. Equal values keep
// insertion order.
func insertSorted(refs []PostReference, ref PostReference) []PostReference {
	i := slices.IndexFunc(refs, func(r PostReference) bool { return r.SortValue < ref.SortValue })
	if i < 0 {
		return append(refs, ref)
	}
	return slices.Insert(refs, i, ref)
}

// assignID returns the id already given to name or appends a new one.
func assignID(m map[int]string, name string) int {
	for id, n := range m {
		if n == name {
			return id
		}
	}
	id := len(m) + 1
	m[id] = name
	return id
}

// EncodePart serialises one named part.
func (c *Collection) EncodePart(name string) ([]byte, error) {
	var v any
	switch name {
	case PartByDistance:
		v = c.ByDistance
	case PartByDuration:
		v = c.ByDuration
	case PartByElevation:
		v = c.ByElevation
	case PartByType:
		v = c.ByType
	case PartByGear:
		v = c.ByGear
	case PartWordIndex:
		v = c.WordIndex
	case PartPostLocator:
		v = c.PostLocator
	default:
		return nil, fmt.Errorf("unknown index part: %q", name)
	}
	return codec.Marshal(v)
}

// DecodePart replaces one named part with decoded data.
func (c *Collection) DecodePart(name string, data []byte) error {
	var err error
	switch name {
	case PartByDistance:
		err = codec.Unmarshal(data, &c.ByDistance)
	case PartByDuration:
		err = codec.Unmarshal(data, &c.ByDuration)
	case PartByElevation:
		err = codec.Unmarshal(data, &c.ByElevation)
	case PartByType:
		err = codec.Unmarshal(data, &c.ByType)
	case PartByGear:
		err = codec.Unmarshal(data, &c.ByGear)
	case PartWordIndex:
		err = codec.Unmarshal(data, &c.WordIndex)
	case PartPostLocator:
		err = codec.Unmarshal(data, &c.PostLocator)
	default:
		return fmt.Errorf("unknown index part: %q", name)
	}
	if err != nil {
		return fmt.Errorf("decode index part %s: %w", name, err)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		ByDistance:  slices.Clone(c.ByDistance),
		ByDuration:  slices.Clone(c.ByDuration),
		ByElevation: slices.Clone(c.ByElevation),
		ByType:      cloneLists(c.ByType),
		ByGear:      cloneLists(c.ByGear),
		WordIndex:   cloneLists(c.WordIndex),
		PostLocator: maps.Clone(c.PostLocator),
		TypeMap:     maps.Clone(c.TypeMap),
		GearMap:     maps.Clone(c.GearMap),
	}
	return out
}

func cloneLists[K comparable](m map[K][]string) map[K][]string {
	out := make(map[K][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
