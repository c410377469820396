package handlers

import (
	"errors"
	"net/http"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// InventoryHandlers handles catalog, stock and ledger HTTP requests
type InventoryHandlers struct {
	catalog    services.CatalogService
	allocation services.AllocationService
	reporting  services.ReportingService
	exporter   services.ExportService
	logger     *zap.Logger
}

// NewInventoryHandlers creates a new inventory handlers instance
func NewInventoryHandlers(catalog services.CatalogService, allocation services.AllocationService, reporting services.ReportingService, exporter services.ExportService, logger *zap.Logger) *InventoryHandlers {
	return &InventoryHandlers{
		catalog:    catalog,
		allocation: allocation,
		reporting:  reporting,
		exporter:   exporter,
		logger:     logger,
	}
}

// RegisterRoutes mounts the inventory routes on g
func (h *InventoryHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/items", h.ListItems)
	g.POST("/items", h.CreateItem)
	g.GET("/items/:id", h.GetItem)
	g.PATCH("/items/:id", h.UpdateItem)

	g.GET("/locations", h.ListLocations)
	g.POST("/locations", h.CreateLocation)

	g.GET("/stocks", h.ListStockLevels)
	g.GET("/stocks/:itemId/:locationId", h.GetStockLevel)

	g.GET("/movements", h.ListMovements)
	g.POST("/movements/export", h.ExportMovements)
	g.GET("/reconciliation", h.Reconcile)

	g.POST("/receive", h.Receive)
	g.POST("/adjust", h.Adjust)
	g.POST("/transfer", h.Transfer)
	g.POST("/consume", h.Consume)
}

// respondError writes an AppError with its mapped status. Anything else is
// logged and reported as a 500.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	if common.KindOf(err) == "" {
		logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return common.SendAppError(c, err)
}

// ListItems handles GET /inventory/items?q=, returning items with their totals
//
//	@Summary	List items with on-hand totals
//	@Tags		inventory
//	@Param		q	query		string	false	"SKU or name search"
//	@Success	200	{object}	map[string]interface{}
//	@Router		/inventory/items [get]
func (h *InventoryHandlers) ListItems(c echo.Context) error {
	items, err := h.reporting.ItemTotals(c.Request().Context(), &models.ItemSearchFilter{Query: c.QueryParam("q")})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

// CreateItem handles POST /inventory/items
//
//	@Summary	Create a catalog item
//	@Tags		inventory
//	@Param		item	body		models.CreateItemRequest	true	"Item"
//	@Success	201		{object}	models.Item
//	@Router		/inventory/items [post]
func (h *InventoryHandlers) CreateItem(c echo.Context) error {
	var req models.CreateItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	item, err := h.catalog.CreateItem(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// GetItem handles GET /inventory/items/:id
func (h *InventoryHandlers) GetItem(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	item, err := h.catalog.GetItem(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, item)
}

// UpdateItem handles PATCH /inventory/items/:id. is_serialized cannot change.
func (h *InventoryHandlers) UpdateItem(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var update models.ItemUpdate
	if err := bindAndValidate(c, &update); err != nil {
		return respondError(c, h.logger, err)
	}
	item, err := h.catalog.UpdateItem(c.Request().Context(), id, &update)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, item)
}

// ListLocations handles GET /inventory/locations
func (h *InventoryHandlers) ListLocations(c echo.Context) error {
	locations, err := h.catalog.ListLocations(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"locations": locations})
}

// CreateLocation handles POST /inventory/locations
func (h *InventoryHandlers) CreateLocation(c echo.Context) error {
	var req models.CreateLocationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	location, err := h.catalog.CreateLocation(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, location)
}

// ListStockLevels handles GET /inventory/stocks?item_id=&location_id=
//
//	@Summary	List stock levels
//	@Tags		inventory
//	@Param		item_id		query		string	false	"Item id"
//	@Param		location_id	query		string	false	"Location id"
//	@Success	200			{object}	map[string]interface{}
//	@Router		/inventory/stocks [get]
func (h *InventoryHandlers) ListStockLevels(c echo.Context) error {
	itemID, err := common.OptionalUUID(c.QueryParam("item_id"), "item_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	locationID, err := common.OptionalUUID(c.QueryParam("location_id"), "location_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	stocks, err := h.reporting.StockLevels(c.Request().Context(), &models.StockLevelFilter{ItemID: itemID, LocationID: locationID})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"stocks": stocks})
}

// GetStockLevel handles GET /inventory/stocks/:itemId/:locationId. A pair
// that never held stock reads as zero.
func (h *InventoryHandlers) GetStockLevel(c echo.Context) error {
	itemID, err := common.ValidateUUID(c.Param("itemId"), "item_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	locationID, err := common.ValidateUUID(c.Param("locationId"), "location_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	level, err := h.reporting.StockLevel(c.Request().Context(), itemID, locationID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, level)
}

// ListMovements handles GET /inventory/movements. Results are newest first.
//
//	@Summary	Query the movement ledger
//	@Tags		inventory
//	@Param		item_id			query		string	false	"Item id"
//	@Param		type			query		string	false	"IN, OUT, TRANSFER or ADJUST"
//	@Param		consumer_kind	query		string	false	"TRUCK, MAINTENANCE_JOB or TRIP"
//	@Param		consumer_id		query		string	false	"Consumer id"
//	@Param		stock_unit_id	query		string	false	"Unit id"
//	@Param		from			query		string	false	"RFC3339 lower bound"
//	@Param		to				query		string	false	"RFC3339 upper bound"
//	@Param		limit			query		int		false	"Page size, max 500"
//	@Success	200				{object}	map[string]interface{}
//	@Router		/inventory/movements [get]
func (h *InventoryHandlers) ListMovements(c echo.Context) error {
	filter, err := movementFilterFromQuery(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	movements, err := h.reporting.Movements(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"movements": movements,
		"limit":     filter.Limit,
	})
}

func movementFilterFromQuery(c echo.Context) (*models.MovementFilter, error) {
	filter := &models.MovementFilter{}
	var err error
	if filter.ItemID, err = common.OptionalUUID(c.QueryParam("item_id"), "item_id"); err != nil {
		return nil, err
	}
	if filter.StockUnitID, err = common.OptionalUUID(c.QueryParam("stock_unit_id"), "stock_unit_id"); err != nil {
		return nil, err
	}
	if raw := c.QueryParam("type"); raw != "" {
		t := models.MovementType(raw)
		if !t.Valid() {
			return nil, common.Validation("type", "type must be IN, OUT, TRANSFER or ADJUST")
		}
		filter.Type = &t
	}
	if raw := c.QueryParam("consumer_kind"); raw != "" {
		consumer, err := consumerFromParams(raw, c.QueryParam("consumer_id"))
		if err != nil {
			return nil, err
		}
		filter.Consumer = consumer
	}

	var from, to time.Time
	if err := echo.QueryParamsBinder(c).
		Time("from", &from, time.RFC3339).
		Time("to", &to, time.RFC3339).
		Int("limit", &filter.Limit).
		BindError(); err != nil {
		return nil, bindingError(err)
	}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}
	return filter, nil
}

func consumerFromParams(kind, id string) (*models.ConsumerRef, error) {
	consumerKind, err := models.ParseConsumerKind(kind)
	if err != nil {
		return nil, common.Validation("consumer_kind", "consumer kind must be TRUCK, MAINTENANCE_JOB or TRIP")
	}
	consumerID, err := common.ValidateUUID(id, "consumer_id")
	if err != nil {
		return nil, err
	}
	return &models.ConsumerRef{Kind: consumerKind, ID: consumerID}, nil
}

func bindingError(err error) error {
	var be *echo.BindingError
	if errors.As(err, &be) {
		return common.Validation(be.Field, "invalid value for "+be.Field)
	}
	return common.Validation("query", "invalid query parameters")
}

// ExportMovements handles POST /inventory/movements/export. The CSV lands in
// object storage and the response carries a presigned download URL.
//
//	@Summary	Export the movement ledger as CSV
//	@Tags		inventory
//	@Param		range	body		models.ExportRequest	false	"Time range"
//	@Success	201		{object}	models.LedgerExport
//	@Router		/inventory/movements/export [post]
func (h *InventoryHandlers) ExportMovements(c echo.Context) error {
	var req models.ExportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	export, err := h.exporter.ExportLedger(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, export)
}

// Reconcile handles GET /inventory/reconciliation
func (h *InventoryHandlers) Reconcile(c echo.Context) error {
	report, err := h.reporting.Reconcile(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"consistent": report.Consistent(),
		"report":     report,
	})
}

// Receive handles POST /inventory/receive
//
//	@Summary	Receive stock into a location
//	@Tags		ledger
//	@Param		receipt	body		models.ReceiveRequest	true	"Receipt"
//	@Success	201		{object}	models.AllocationResult
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	409		{object}	common.ErrorResponse
//	@Router		/inventory/receive [post]
func (h *InventoryHandlers) Receive(c echo.Context) error {
	var req models.ReceiveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Receive(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Adjust handles POST /inventory/adjust with a signed delta
func (h *InventoryHandlers) Adjust(c echo.Context) error {
	var req models.AdjustRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Adjust(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Transfer handles POST /inventory/transfer
func (h *InventoryHandlers) Transfer(c echo.Context) error {
	var req models.TransferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Transfer(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Consume handles POST /inventory/consume
func (h *InventoryHandlers) Consume(c echo.Context) error {
	var req models.ConsumeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Consume(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
