package manifest

import (
	"github.com/dmitrijs2005/feedkeeper/internal/entity"
)

type DerivedMetrics struct {
	Distance  float64 `cbor:"distance"`
	Elevation float64 `cbor:"elevation"`
	Duration  float64 `cbor:"duration"`
}

// AddMetrics sums two metric sets field by field.
func AddMetrics(a, b DerivedMetrics) DerivedMetrics {
	return DerivedMetrics{
		Distance:  a.Distance + b.Distance,
		Elevation: a.Elevation + b.Elevation,
		Duration:  a.Duration + b.Duration,
	}
}

// PostMeta is the listing entry for one post. Totals mirror the lengths of
// the lists behind Likes and Comments.
type PostMeta struct {
	Title          string                     `cbor:"title"`
	Date           int64                      `cbor:"date"`
	Type           string                     `cbor:"type,omitempty"`
	Gear           string                     `cbor:"gear,omitempty"`
	Metrics        DerivedMetrics             `cbor:"metrics"`
	TotalLikes     int                        `cbor:"totalLikes"`
	SampleLikes    []Interaction              `cbor:"sampleLikes"`
	TotalComments  int                        `cbor:"totalComments"`
	SampleComments []Interaction              `cbor:"sampleComments"`
	Main           entity.StorageIdentifier   `cbor:"main"`
	Comments       *entity.StorageIdentifier  `cbor:"comments,omitempty"`
	Likes          *entity.StorageIdentifier  `cbor:"likes,omitempty"`
	Thumbnail      *entity.StorageIdentifier  `cbor:"thumbnail,omitempty"`
	Media          []entity.StorageIdentifier `cbor:"media"`
}

// PostID identifies a post by the object id of its main content.
func PostID(meta PostMeta) string {
	return meta.Main.ObjectID
}

type InteractionKind string

const (
	KindLike    InteractionKind = "like"
	KindComment InteractionKind = "comment"
	// KindUnlike withdraws the author's like.
	KindUnlike InteractionKind = "unlike"
)

// Interaction is a signed like, comment or unlike. Signature covers the
// to-be-signed form returned by TBS.
type Interaction struct {
	Kind      InteractionKind `cbor:"kind"`
	PostID    string          `cbor:"postId"`
	Author    string          `cbor:"author"`
	Date      int64           `cbor:"date"`
	Text      string          `cbor:"text,omitempty"`
	Signature []byte          `cbor:"signature"`
}

// LikeTbs is the signed part of a like or unlike.
type LikeTbs struct {
	Kind   InteractionKind `cbor:"kind"`
	PostID string          `cbor:"postId"`
	Author string          `cbor:"author"`
	Date   int64           `cbor:"date"`
}

// CommentTbs is the signed part of a comment.
type CommentTbs struct {
	PostID string `cbor:"postId"`
	Author string `cbor:"author"`
	Date   int64  `cbor:"date"`
	Text   string `cbor:"text"`
}

// TBS returns the value whose encoding is signed.
func (i Interaction) TBS() any {
	if i.Kind == KindComment {
		return CommentTbs{PostID: i.PostID, Author: i.Author, Date: i.Date, Text: i.Text}
	}
	return LikeTbs{Kind: i.Kind, PostID: i.PostID, Author: i.Author, Date: i.Date}
}

// InteractionList is the decrypted content behind PostMeta.Likes or
// PostMeta.Comments, newest first.
type InteractionList struct {
	Items []Interaction `cbor:"items"`
}
