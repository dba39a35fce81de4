package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrWindowFetch wraps every failed window query.
var ErrWindowFetch = errors.New("order window fetch failed")

// WindowFetcher loads the orders of one window, optionally scoped to a site.
type WindowFetcher interface {
	Fetch(ctx context.Context, w DateWindow, location string) ([]domain.OrderRecord, error)
}

type FetcherConfig struct {
	SitePrefix     string
	LocationFormat string
	Limit          int
}

func FetcherConfigFrom(cfg config.DashboardConfig) FetcherConfig {
	return FetcherConfig{
		SitePrefix:     cfg.SitePrefix,
		LocationFormat: cfg.LocationFormat,
		Limit:          cfg.FetchLimit,
	}
}

// Fetcher queries the orders collection one window at a time.
type Fetcher struct {
	repo repository.OrderRepository
	cfg  FetcherConfig
}

func NewFetcher(repo repository.OrderRepository, cfg FetcherConfig) *Fetcher {
	if cfg.LocationFormat == "" {
		cfg.LocationFormat = "%s - %s"
	}
	return &Fetcher{repo: repo, cfg: cfg}
}

// SiteLocation expands a site id to the stored location label. Labels that
// already carry the site prefix are returned unchanged.
func (f *Fetcher) SiteLocation(site string) string {
	site = strings.TrimSpace(site)
	if site == "" || f.cfg.SitePrefix == "" || strings.HasPrefix(site, f.cfg.SitePrefix) {
		return site
	}
	return fmt.Sprintf(f.cfg.LocationFormat, f.cfg.SitePrefix, site)
}

// Fetch returns the window's orders. On failure the result is empty and the
// error wraps ErrWindowFetch.
func (f *Fetcher) Fetch(ctx context.Context, w DateWindow, location string) ([]domain.OrderRecord, error) {
	filter := repository.OrderFilter{
		Start: w.StartMillis(),
		End:   w.EndMillis(),
		Limit: f.cfg.Limit,
	}
	if loc := f.SiteLocation(location); loc != "" {
		filter.Location = loc
	} else {
		filter.LocationPrefix = f.cfg.SitePrefix
	}

	orders, err := f.repo.ListOrders(ctx, filter)
	if err != nil {
		log.Warn().Err(err).Str("date", w.Date()).Str("location", filter.Location).Msg("orders: window fetch failed")
		return []domain.OrderRecord{}, fmt.Errorf("%w for %s: %w", ErrWindowFetch, w.Date(), err)
	}
	return orders, nil
}
