// Package memory is an in-process Store used by tests and by
// STORE_DRIVER=memory for local runs.
package memory

import (
	"context"
	"sync"

	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
)

type dataset struct {
	items       map[uuid.UUID]models.Item
	locations   map[uuid.UUID]models.Location
	levels      map[models.StockKey]models.StockLevel
	units       map[uuid.UUID]models.StockUnit
	assignments map[uuid.UUID]models.Assignment
	movements   []models.Movement
}

func newDataset() *dataset {
	return &dataset{
		items:       make(map[uuid.UUID]models.Item),
		locations:   make(map[uuid.UUID]models.Location),
		levels:      make(map[models.StockKey]models.StockLevel),
		units:       make(map[uuid.UUID]models.StockUnit),
		assignments: make(map[uuid.UUID]models.Assignment),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the maps; stored values are never written through, so a
// shallow copy of each entry is enough. The full slice expression forces
// appends in the copy to reallocate.
func (d *dataset) clone() *dataset {
	return &dataset{
		items:       cloneMap(d.items),
		locations:   cloneMap(d.locations),
		levels:      cloneMap(d.levels),
		units:       cloneMap(d.units),
		assignments: cloneMap(d.assignments),
		movements:   d.movements[:len(d.movements):len(d.movements)],
	}
}

// Store serializes every unit of work behind one mutex. A unit of work
// runs on a copy of the data that replaces the committed copy only when
// fn succeeds.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newDataset()}
}

func (s *Store) RunInTx(ctx context.Context, fn repositories.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, &unitOfWork{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) View(ctx context.Context, fn repositories.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	// reads get a throwaway copy so a stray write cannot leak
	return fn(ctx, &unitOfWork{data: s.data.clone()})
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

type unitOfWork struct {
	data *dataset
}

func (u *unitOfWork) Items() repositories.ItemRepository { return &itemRepo{u.data} }
func (u *unitOfWork) Locations() repositories.LocationRepository { return &locationRepo{u.data} }
func (u *unitOfWork) StockLevels() repositories.StockLevelRepository { return &stockLevelRepo{u.data} }
func (u *unitOfWork) Units() repositories.StockUnitRepository { return &stockUnitRepo{u.data} }
func (u *unitOfWork) Assignments() repositories.AssignmentRepository { return &assignmentRepo{u.data} }
func (u *unitOfWork) Movements() repositories.MovementRepository { return &movementRepo{u.data} }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
