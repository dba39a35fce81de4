package api

import (
	"strings"
	"time"

	"github.com/andresuchdata/opsdash/internal/api/handlers"
	"github.com/andresuchdata/opsdash/internal/api/middleware"
	"github.com/andresuchdata/opsdash/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	ShipmentService *service.ShipmentService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/health", handlers.Health)

	apiGroup := router.Group("/api/v1")
	if services != nil && services.ShipmentService != nil {
		h := handlers.NewShipmentHandler(services.ShipmentService)
		apiGroup.GET("/shipments/dashboard", h.GetDashboard)
		apiGroup.GET("/shipments/items", h.GetItems)
		apiGroup.GET("/orders/search", h.SearchOrder)
		apiGroup.DELETE("/sessions/:id", h.EndSession)
	}

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins, allowAll := normalizeAllowedOrigins(allowedOrigins)
	switch {
	case allowAll:
		cfg.AllowOrigins = nil
		cfg.AllowOriginFunc = func(string) bool { return true }
	case len(origins) > 0:
		cfg.AllowOrigins = origins
	}
	return cfg
}

// normalizeAllowedOrigins flattens comma-separated entries; "*" allows all.
func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			switch trimmed {
			case "":
			case "*":
				allowAll = true
			default:
				parsed = append(parsed, trimmed)
			}
		}
	}
	return parsed, allowAll
}
