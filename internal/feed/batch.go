package feed

import (
	"context"

	"github.com/dmitrijs2005/feedkeeper/internal/entity"
)

// batch collects payloads and the in-memory updates that become valid once
// those payloads are stored.
type batch struct {
	payloads []entity.Payload
	commits  []func()
}

func (b *batch) add(p entity.Payload, commit func()) {
	b.payloads = append(b.payloads, p)
	if commit != nil {
		b.commits = append(b.commits, commit)
	}
}

// then registers an update that does not carry its own payload.
func (b *batch) then(commit func()) {
	b.commits = append(b.commits, commit)
}

// stage is the generic form of add for an entity field of the session.
func stage[T any](b *batch, p entity.Payload, e entity.Entity[T], dst *entity.Entity[T]) {
	b.add(p, func() { *dst = e })
}

func (s *Session) flush(ctx context.Context, b *batch) error {
	if err := s.remote.Store(ctx, b.payloads...); err != nil {
		return err
	}
	for _, c := range b.commits {
		c()
	}
	return nil
}
