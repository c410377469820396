package handlers

import (
	"net/http"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// UnitHandlers handles serialized unit lifecycle requests
type UnitHandlers struct {
	allocation services.AllocationService
	reporting  services.ReportingService
	logger     *zap.Logger
}

func NewUnitHandlers(allocation services.AllocationService, reporting services.ReportingService, logger *zap.Logger) *UnitHandlers {
	return &UnitHandlers{
		allocation: allocation,
		reporting:  reporting,
		logger:     logger,
	}
}

func (h *UnitHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("/units", h.ListUnits)
	g.PATCH("/units/:id", h.UpdateUnit)
	g.POST("/units/:id/transfer", h.TransferUnit)
	g.POST("/units/:id/assign", h.AssignUnit)
	g.POST("/units/:id/return", h.ReturnUnit)
	g.POST("/units/:id/scrap", h.ScrapUnit)
	g.GET("/units/:id/history", h.UnitHistory)
	g.GET("/consumers/:kind/:id/parts", h.ConsumerParts)
}

// ListUnits handles GET /inventory/units?status=&item_id=&location_id=&q=
//
//	@Summary	List serialized units
//	@Tags		units
//	@Param		status		query		string	false	"IN_STOCK, ASSIGNED, SCRAPPED or LOST"
//	@Param		item_id		query		string	false	"Item id"
//	@Param		location_id	query		string	false	"Location id"
//	@Param		q			query		string	false	"Serial number or barcode search"
//	@Success	200			{object}	map[string]interface{}
//	@Router		/inventory/units [get]
func (h *UnitHandlers) ListUnits(c echo.Context) error {
	filter := &models.StockUnitFilter{Query: c.QueryParam("q")}
	var err error
	if filter.ItemID, err = common.OptionalUUID(c.QueryParam("item_id"), "item_id"); err != nil {
		return respondError(c, h.logger, err)
	}
	if filter.LocationID, err = common.OptionalUUID(c.QueryParam("location_id"), "location_id"); err != nil {
		return respondError(c, h.logger, err)
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := models.UnitStatus(raw)
		if !status.Valid() {
			return respondError(c, h.logger, common.Validation("status", "status must be IN_STOCK, ASSIGNED, SCRAPPED or LOST"))
		}
		filter.Status = &status
	}

	units, err := h.reporting.Units(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"units": units})
}

// UpdateUnit handles PATCH /inventory/units/:id. Only the barcode is
// editable, in any status.
func (h *UnitHandlers) UpdateUnit(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req models.UpdateUnitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.UpdateUnitBarcode(c.Request().Context(), unitID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// TransferUnit handles POST /inventory/units/:id/transfer
func (h *UnitHandlers) TransferUnit(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req models.TransferUnitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.TransferUnit(c.Request().Context(), unitID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// AssignUnit handles POST /inventory/units/:id/assign. With replace_unit_id
// the old unit is removed and scrapped in the same call.
//
//	@Summary	Install a unit on a truck or maintenance job
//	@Tags		units
//	@Param		id			path		string					true	"Unit id"
//	@Param		assignment	body		models.AssignRequest	true	"Assignment"
//	@Success	201			{object}	models.AllocationResult
//	@Failure	409			{object}	common.ErrorResponse
//	@Router		/inventory/units/{id}/assign [post]
func (h *UnitHandlers) AssignUnit(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req models.AssignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Assign(c.Request().Context(), unitID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ReturnUnit handles POST /inventory/units/:id/return
func (h *UnitHandlers) ReturnUnit(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req models.ReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Return(c.Request().Context(), unitID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ScrapUnit handles POST /inventory/units/:id/scrap. An empty body scraps.
func (h *UnitHandlers) ScrapUnit(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var req models.ScrapRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, h.logger, err)
	}
	res, err := h.allocation.Scrap(c.Request().Context(), unitID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UnitHistory handles GET /inventory/units/:id/history, oldest first
func (h *UnitHandlers) UnitHistory(c echo.Context) error {
	unitID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	history, err := h.reporting.History(c.Request().Context(), unitID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"assignments": history})
}

// ConsumerParts handles GET /inventory/consumers/:kind/:id/parts. kind
// accepts path forms such as "truck" and "maintenance-job".
func (h *UnitHandlers) ConsumerParts(c echo.Context) error {
	consumer, err := consumerFromParams(c.Param("kind"), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var currentOnly bool
	if err := echo.QueryParamsBinder(c).Bool("currentOnly", &currentOnly).BindError(); err != nil {
		return respondError(c, h.logger, bindingError(err))
	}
	parts, err := h.reporting.ConsumerParts(c.Request().Context(), *consumer, currentOnly)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"consumer": consumer,
		"parts":    parts,
	})
}
