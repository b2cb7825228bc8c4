package feed

import (
	"context"
	"fmt"
	"maps"

	"github.com/dmitrijs2005/feedkeeper/internal/entity"
	"github.com/dmitrijs2005/feedkeeper/internal/index"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// newIndexes creates empty index parts and their IndexManifest under the
// master key.
func (s *Session) newIndexes(b *batch) (entity.StorageIdentifier, error) {
	c := index.NewCollection()
	parts := make(map[string]entity.Entity[[]byte], len(index.Parts))
	ids := make(map[string]entity.StorageIdentifier, len(index.Parts))

	for _, name := range index.Parts {
		data, err := c.EncodePart(name)
		if err != nil {
			return entity.StorageIdentifier{}, err
		}
		p, e, err := entity.New(data, s.masterKey, entity.Raw)
		if err != nil {
			return entity.StorageIdentifier{}, err
		}
		b.add(p, nil)
		parts[name] = e
		ids[name] = e.Storage
	}

	im := manifest.IndexManifest{Parts: ids, TypeMap: c.TypeMap, GearMap: c.GearMap}
	p, e, err := entity.New(im, s.masterKey, entity.Encode[manifest.IndexManifest])
	if err != nil {
		return entity.StorageIdentifier{}, err
	}
	b.add(p, func() {
		s.indexManifest = e
		s.indexParts = parts
		s.indexes = c
	})
	return e.Storage, nil
}

func (s *Session) loadIndexes(ctx context.Context, id entity.StorageIdentifier) error {
	im, err := Fetch[manifest.IndexManifest](ctx, s.remote, id)
	if err != nil {
		return fmt.Errorf("index manifest: %w", err)
	}

	ids := make([]entity.StorageIdentifier, 0, len(index.Parts))
	for _, name := range index.Parts {
		pid, ok := im.Value.Parts[name]
		if !ok {
			return fmt.Errorf("index manifest has no %s part", name)
		}
		ids = append(ids, pid)
	}

	opened, err := s.remote.FetchRawMany(ctx, ids...)
	if err != nil {
		return fmt.Errorf("index parts: %w", err)
	}

	c := index.NewCollection()
	parts := make(map[string]entity.Entity[[]byte], len(index.Parts))
	for i, name := range index.Parts {
		if err := c.DecodePart(name, opened[i].Content); err != nil {
			return err
		}
		parts[name] = entity.Entity[[]byte]{Value: opened[i].Content, Version: opened[i].Version, Storage: ids[i]}
	}
	if im.Value.TypeMap != nil {
		c.TypeMap = im.Value.TypeMap
	}
	if im.Value.GearMap != nil {
		c.GearMap = im.Value.GearMap
	}

	s.indexManifest = im
	s.indexParts = parts
	s.indexes = c
	return nil
}

// stageIndexes writes every part of c and the category maps.
func (s *Session) stageIndexes(b *batch, c *index.Collection) error {
	parts := make(map[string]entity.Entity[[]byte], len(index.Parts))
	for _, name := range index.Parts {
		data, err := c.EncodePart(name)
		if err != nil {
			return err
		}
		p, e, err := entity.Update(s.indexParts[name], data, entity.Raw)
		if err != nil {
			return err
		}
		b.add(p, nil)
		parts[name] = e
	}

	im := s.indexManifest.Value
	im.TypeMap = maps.Clone(c.TypeMap)
	im.GearMap = maps.Clone(c.GearMap)
	p, e, err := entity.Update(s.indexManifest, im, entity.Encode[manifest.IndexManifest])
	if err != nil {
		return err
	}
	b.add(p, func() {
		s.indexManifest = e
		s.indexParts = parts
		s.indexes = c
	})
	return nil
}

// SearchByTitle searches the own posts by title words.
func (s *Session) SearchByTitle(query string) ([]index.Hit, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.indexes.SearchByTitle(query), nil
}
