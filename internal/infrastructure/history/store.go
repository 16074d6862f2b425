// Package history persists history records in a partitioned storage engine.
//
// Store owns the single engine connection for the process. The connection is
// opened lazily by the first operation; concurrent first callers wait on the
// same open, and every category partition exists before any read or write.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/ports"
)

// Opener connects to a storage engine.
type Opener func(ctx context.Context) (ports.TransactionalStore, error)

// Store implements ports.RecordStore over a lazily opened engine.
type Store struct {
	open       Opener
	categories []domain.Category
	quota      int64

	mu     sync.Mutex
	engine ports.TransactionalStore
	group  singleflight.Group
}

// NewStore returns a store that opens its engine on first use. quota is the
// number reported by StorageEstimate.
func NewStore(open Opener, quota int64) *Store {
	return &Store{
		open:       open,
		categories: domain.Categories(),
		quota:      quota,
	}
}

func (s *Store) connection(ctx context.Context) (ports.TransactionalStore, error) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine != nil {
		return engine, nil
	}

	v, err, _ := s.group.Do("open", func() (interface{}, error) {
		s.mu.Lock()
		if s.engine != nil {
			defer s.mu.Unlock()
			return s.engine, nil
		}
		s.mu.Unlock()

		if s.open == nil {
			return nil, fmt.Errorf("%w: no storage engine configured", domain.ErrStoreUnavailable)
		}
		// Shared by every waiting caller, so no single caller may cancel it.
		ctx := context.WithoutCancel(ctx)
		engine, err := s.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: open engine: %w", domain.ErrStoreUnavailable, err)
		}
		for _, category := range s.categories {
			if err := engine.OpenPartition(ctx, category); err != nil {
				_ = engine.Close()
				return nil, fmt.Errorf("%w: create partition %s: %w", domain.ErrStoreUnavailable, category, err)
			}
		}

		s.mu.Lock()
		s.engine = engine
		s.mu.Unlock()
		return engine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ports.TransactionalStore), nil
}

// Insert adds a record. A second record with the same id fails with
// domain.ErrDuplicateKey; any other engine failure is domain.ErrStoreUnavailable.
func (s *Store) Insert(ctx context.Context, category domain.Category, record domain.Record) error {
	engine, err := s.partition(ctx, category)
	if err != nil {
		return err
	}
	if err := engine.Insert(ctx, category, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) || errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: insert into %s: %w", domain.ErrStoreUnavailable, category, err)
	}
	return nil
}

// ScanAll returns every record in the partition, newest first.
func (s *Store) ScanAll(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	engine, err := s.partition(ctx, category)
	if err != nil {
		return nil, err
	}
	records, err := engine.Scan(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", category, err)
	}
	return records, nil
}

// DeleteOne removes a record; unknown ids are not an error.
func (s *Store) DeleteOne(ctx context.Context, category domain.Category, id string) error {
	engine, err := s.partition(ctx, category)
	if err != nil {
		return err
	}
	if err := engine.Delete(ctx, category, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", category, id, err)
	}
	return nil
}

// Clear removes every record in the partition.
func (s *Store) Clear(ctx context.Context, category domain.Category) error {
	engine, err := s.partition(ctx, category)
	if err != nil {
		return err
	}
	if err := engine.Clear(ctx, category); err != nil {
		return fmt.Errorf("clear %s: %w", category, err)
	}
	return nil
}

// Count returns the number of records in the partition.
func (s *Store) Count(ctx context.Context, category domain.Category) (int, error) {
	engine, err := s.partition(ctx, category)
	if err != nil {
		return 0, err
	}
	n, err := engine.Count(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", category, err)
	}
	return n, nil
}

// StorageEstimate reports engine usage against the configured quota. Usage is
// zero when the engine cannot report it.
func (s *Store) StorageEstimate(ctx context.Context) (domain.StorageEstimate, error) {
	engine, err := s.connection(ctx)
	if err != nil {
		return domain.StorageEstimate{}, err
	}
	used, err := engine.UsedBytes(ctx)
	if err != nil {
		used = 0
	}
	return domain.StorageEstimate{UsedBytes: used, QuotaBytes: s.quota}, nil
}

// Close releases the engine connection. A later call reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}

func (s *Store) partition(ctx context.Context, category domain.Category) (ports.TransactionalStore, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, category)
	}
	return s.connection(ctx)
}

var _ ports.RecordStore = (*Store)(nil)
