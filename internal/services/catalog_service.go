package services

import (
	"context"
	"strings"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CatalogService interface {
	CreateItem(ctx context.Context, req *models.CreateItemRequest) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, update *models.ItemUpdate) (*models.Item, error)
	CreateLocation(ctx context.Context, req *models.CreateLocationRequest) (*models.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
}

type catalogService struct {
	store  repositories.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCatalogService(store repositories.Store, logger *zap.Logger, opts ...Option) CatalogService {
	o := applyOptions(opts)
	return &catalogService{store: store, logger: logger.With(zap.String("component", "catalog")), now: o.now}
}

func (s *catalogService) CreateItem(ctx context.Context, req *models.CreateItemRequest) (*models.Item, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	if sku == "" {
		return nil, common.Validation("sku", "sku is required")
	}
	if name == "" {
		return nil, common.Validation("name", "name is required")
	}
	uom := strings.TrimSpace(req.UnitOfMeasure)
	if uom == "" {
		uom = models.DefaultUnitOfMeasure
	}

	now := s.now()
	item := &models.Item{
		ID:            uuid.New(),
		SKU:           sku,
		Name:          name,
		UnitOfMeasure: uom,
		IsSerialized:  req.IsSerialized,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return uow.Items().Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("item created", zap.String("item_id", item.ID.String()), zap.String("sku", item.SKU), zap.Bool("serialized", item.IsSerialized))
	return item, nil
}

func (s *catalogService) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item *models.Item
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		item, err = uow.Items().GetByID(ctx, id)
		return err
	})
	return item, err
}

// UpdateItem edits name and unit of measure. The serialized flag is fixed:
// flipping it would orphan the existing stock representation.
func (s *catalogService) UpdateItem(ctx context.Context, id uuid.UUID, update *models.ItemUpdate) (*models.Item, error) {
	var item *models.Item
	err := s.store.RunInTx(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		item, err = uow.Items().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if update.IsSerialized != nil && *update.IsSerialized != item.IsSerialized {
			return common.Validation("is_serialized", "is_serialized cannot be changed after creation")
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return common.Validation("name", "name must not be empty")
			}
			item.Name = name
		}
		if update.UnitOfMeasure != nil {
			uom := strings.TrimSpace(*update.UnitOfMeasure)
			if uom == "" {
				uom = models.DefaultUnitOfMeasure
			}
			item.UnitOfMeasure = uom
		}
		item.UpdatedAt = s.now()
		return uow.Items().Update(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *catalogService) CreateLocation(ctx context.Context, req *models.CreateLocationRequest) (*models.Location, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, common.Validation("name", "name is required")
	}
	location := &models.Location{ID: uuid.New(), Name: name, CreatedAt: s.now()}
	err := s.store.RunInTx(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return uow.Locations().Create(ctx, location)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("location created", zap.String("location_id", location.ID.String()), zap.String("name", location.Name))
	return location, nil
}

func (s *catalogService) GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var location *models.Location
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		location, err = uow.Locations().GetByID(ctx, id)
		return err
	})
	return location, err
}

func (s *catalogService) ListLocations(ctx context.Context) ([]*models.Location, error) {
	var locations []*models.Location
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		locations, err = uow.Locations().List(ctx)
		return err
	})
	return locations, err
}
