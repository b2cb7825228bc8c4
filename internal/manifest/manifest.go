// Package manifest defines the encrypted object graph every user keeps in the
// content store: the root Manifest, the paged post listing, follower state and
// follow requests. Objects reference each other only through
// entity.StorageIdentifier values and are resolved on demand.
package manifest

import (
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
)

// Manifest is the per-user root object.
type Manifest struct {
	PostManifest      entity.StorageIdentifier            `cbor:"postManifest"`
	Indexes           entity.StorageIdentifier            `cbor:"indexes"`
	FollowerManifests map[string]entity.StorageIdentifier `cbor:"followerManifests"`
	GroupStates       map[string]entity.StorageIdentifier `cbor:"groupStates"`
	FollowRequests    entity.StorageIdentifier            `cbor:"followRequests"`
}

type Totals struct {
	TotalPosts          int            `cbor:"totalPosts"`
	TotalDerivedMetrics DerivedMetrics `cbor:"totalDerivedMetrics"`
}

// PageRef points at a sealed page and records when it stopped accepting posts.
type PageRef struct {
	UsedUntil int64                    `cbor:"usedUntil"`
	Page      entity.StorageIdentifier `cbor:"page"`
}

// PostManifest aggregates a user's posts. Pages is append-only, oldest first.
type PostManifest struct {
	Totals      Totals                   `cbor:"totals"`
	CurrentPage entity.StorageIdentifier `cbor:"currentPage"`
	Pages       []PageRef                `cbor:"pages"`
}

// PostManifestPage holds up to a page limit of posts, most recent first.
type PostManifestPage struct {
	Posts     []PostMeta `cbor:"posts"`
	PageIndex int        `cbor:"pageIndex"`
}

// FollowerManifest is what a follower keeps about one followee.
type FollowerManifest struct {
	PostManifest entity.StorageIdentifier `cbor:"postManifest"`
	CurrentPage  entity.StorageIdentifier `cbor:"currentPage"`
}

// FollowerGroupState is a local copy of a group state plus interactions seen
// for posts this user cannot write to.
type FollowerGroupState struct {
	GroupState         []byte                   `cbor:"groupState"`
	CachedInteractions map[string][]Interaction `cbor:"cachedInteractions"`
}

type OutgoingFollowRequest struct {
	FolloweeID     string `cbor:"followeeId"`
	PublicPackage  []byte `cbor:"publicPackage"`
	PrivatePackage []byte `cbor:"privatePackage"`
}

type IncomingFollowRequest struct {
	FollowerID    string `cbor:"followerId"`
	PublicPackage []byte `cbor:"publicPackage"`
}

type FollowRequests struct {
	Outgoing []OutgoingFollowRequest `cbor:"outgoing"`
	Incoming []IncomingFollowRequest `cbor:"incoming"`
}

// IndexManifest points at the persisted index parts.
type IndexManifest struct {
	Parts   map[string]entity.StorageIdentifier `cbor:"parts"`
	TypeMap map[int]string                      `cbor:"typeMap"`
	GearMap map[int]string                      `cbor:"gearMap"`
}

// NewManifest returns a root object with initialised maps.
func NewManifest(posts, indexes, followRequests entity.StorageIdentifier) Manifest {
	return Manifest{
		PostManifest:      posts,
		Indexes:           indexes,
		FollowerManifests: map[string]entity.StorageIdentifier{},
		GroupStates:       map[string]entity.StorageIdentifier{},
		FollowRequests:    followRequests,
	}
}

// Clone copies the maps so the result can be modified without touching m.
func (m Manifest) Clone() Manifest {
	out := m
	out.FollowerManifests = make(map[string]entity.StorageIdentifier, len(m.FollowerManifests))
	for k, v := range m.FollowerManifests {
		out.FollowerManifests[k] = v
	}
	out.GroupStates = make(map[string]entity.StorageIdentifier, len(m.GroupStates))
	for k, v := range m.GroupStates {
		out.GroupStates[k] = v
	}
	return out
}

// Clone copies the interaction cache.
func (s FollowerGroupState) Clone() FollowerGroupState {
	out := FollowerGroupState{
		GroupState:         s.GroupState,
		CachedInteractions: make(map[string][]Interaction, len(s.CachedInteractions)),
	}
	for k, v := range s.CachedInteractions {
		out.CachedInteractions[k] = append([]Interaction(nil), v...)
	}
	return out
}

// Clone copies the page list.
func (p PostManifest) Clone() PostManifest {
	out := p
	out.Pages = append([]PageRef(nil), p.Pages...)
	return out
}
