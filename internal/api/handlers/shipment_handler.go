package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/opsdash/internal/api/middleware"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/orders"
	"github.com/andresuchdata/opsdash/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ShipmentHandler struct {
	service *service.ShipmentService
	now     func() time.Time
}

func NewShipmentHandler(service *service.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{service: service, now: time.Now}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func sessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(middleware.SessionHeader)); id != "" {
		return id
	}
	return service.DefaultSessionID
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseSelection reads date, saturday, sunday and location. The date defaults
// to today in the dashboard time zone.
func (h *ShipmentHandler) parseSelection(c *gin.Context) (orders.Selection, error) {
	loc := h.service.Location()
	sel := orders.Selection{
		Date:     h.now().In(loc),
		Location: strings.TrimSpace(c.Query("location")),
	}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d, err := orders.ParseDate(raw, loc)
		if err != nil {
			return sel, err
		}
		sel.Date = d
	}

	var err error
	if sel.IncludeSaturday, err = optionalBool(c, "saturday"); err != nil {
		return sel, err
	}
	if sel.IncludeSunday, err = optionalBool(c, "sunday"); err != nil {
		return sel, err
	}
	return sel, nil
}

func (h *ShipmentHandler) GetDashboard(c *gin.Context) {
	sel, err := h.parseSelection(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection", "details": err.Error()})
		return
	}

	d, err := h.service.Dashboard(c.Request.Context(), sessionID(c), sel, c.Query("refresh") == "true")
	if err != nil {
		log.Error().Err(err).Msg("api: dashboard failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to build dashboard", "details": err.Error()})
		return
	}
	c.Header(middleware.SessionHeader, d.SessionID)
	c.JSON(http.StatusOK, d)
}

func (h *ShipmentHandler) GetItems(c *gin.Context) {
	sel, err := h.parseSelection(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection", "details": err.Error()})
		return
	}
	category := domain.Category(strings.TrimSpace(c.Query("category")))
	if category != "" && !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category", "details": string(category)})
		return
	}

	items, err := h.service.Items(c.Request.Context(), sessionID(c), sel, category, c.Query("refresh") == "true")
	if err != nil {
		log.Error().Err(err).Msg("api: items failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to load items", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ShipmentHandler) SearchOrder(c *gin.Context) {
	orderNumber := strings.TrimSpace(c.Query("order_number"))
	if orderNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_number is required"})
		return
	}
	sel, err := h.parseSelection(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection", "details": err.Error()})
		return
	}

	found, err := h.service.SearchOrder(c.Request.Context(), sessionID(c), sel, orderNumber)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found", "details": orderNumber})
			return
		}
		log.Error().Err(err).Str("order_number", orderNumber).Msg("api: order search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order search failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": found, "count": len(found)})
}

func (h *ShipmentHandler) EndSession(c *gin.Context) {
	id := c.Param("id")
	if !h.service.EndSession(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "details": id})
		return
	}
	c.Status(http.StatusNoContent)
}
