package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/opsdash/internal/catalog"
	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/andresuchdata/opsdash/internal/orders"
	"github.com/andresuchdata/opsdash/internal/repository"
	"github.com/andresuchdata/opsdash/internal/shipment"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSessionID   = "default"
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 100
)

var ErrOrderNotFound = errors.New("order not found")

// CacheLoader builds the product cache of a session.
type CacheLoader interface {
	Load(ctx context.Context) *catalog.ProductCache
}

// OrderAggregator fetches and unions the windows of a selection.
type OrderAggregator interface {
	Aggregate(ctx context.Context, sel orders.Selection, memo *orders.Memo) orders.OrderSet
	Location() *time.Location
}

// Session holds one operator's product cache and window memo.
type Session struct {
	ID        string
	CreatedAt time.Time

	memo     *orders.Memo
	ready    chan struct{}
	cache    *catalog.ProductCache
	cancel   context.CancelFunc
	lastUsed time.Time
}

func newSession(id string, loader CacheLoader, now time.Time, windowTTL time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: now,
		memo:      orders.NewMemo(windowTTL),
		ready:     make(chan struct{}),
		cancel:    cancel,
		lastUsed:  now,
	}
	go func() {
		defer close(s.ready)
		s.cache = loader.Load(ctx)
	}()
	return s
}

// Cache waits for the session's product cache to finish loading.
func (s *Session) Cache(ctx context.Context) (*catalog.ProductCache, error) {
	select {
	case <-s.ready:
		return s.cache, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for product cache: %w", ctx.Err())
	}
}

func (s *Session) close() {
	s.cancel()
}

// Dashboard is the shipment view of one selection.
type Dashboard struct {
	SessionID    string                    `json:"sessionId"`
	Date         string                    `json:"date"`
	Location     string                    `json:"location,omitempty"`
	Saturday     bool                      `json:"includeSaturday"`
	Sunday       bool                      `json:"includeSunday"`
	Windows      []orders.WindowResult     `json:"windows"`
	Processing   int                       `json:"processing"`
	Shipped      int                       `json:"shipped"`
	TotalOrders  int                       `json:"totalOrders"`
	TotalItems   int                       `json:"totalItems"`
	Unmatched    int                       `json:"unmatched"`
	CatalogSize  int                       `json:"catalogSize"`
	CatalogError string                    `json:"catalogError,omitempty"`
	Matrices     []shipment.Matrix         `json:"matrices"`
	Items        []domain.EnrichedLineItem `json:"-"`
	Orders       []domain.OrderRecord      `json:"-"`
}

type ShipmentService struct {
	loader     CacheLoader
	aggregator OrderAggregator
	orders     repository.OrderRepository

	sessionTTL  time.Duration
	maxSessions int
	windowTTL   time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type ServiceOption func(*ShipmentService)

// WithSessionTTL sets how long an idle session survives.
func WithSessionTTL(d time.Duration) ServiceOption {
	return func(s *ShipmentService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) ServiceOption {
	return func(s *ShipmentService) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithWindowTTL sets how long each session may reuse a fetched window.
func WithWindowTTL(d time.Duration) ServiceOption {
	return func(s *ShipmentService) {
		s.windowTTL = d
	}
}

func withClock(now func() time.Time) ServiceOption {
	return func(s *ShipmentService) {
		s.now = now
	}
}

func NewShipmentService(loader CacheLoader, aggregator OrderAggregator, orderRepo repository.OrderRepository, opts ...ServiceOption) *ShipmentService {
	s := &ShipmentService{
		loader:      loader,
		aggregator:  aggregator,
		orders:      orderRepo,
		sessionTTL:  DefaultSessionTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the session with the given id, starting it if needed.
// Every call evicts sessions idle longer than the session TTL; starting a
// session at the cap evicts the least recently used one.
func (s *ShipmentService) Session(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictIdleLocked(now)
	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = now
		return sess
	}
	for len(s.sessions) >= s.maxSessions {
		s.evictLocked(s.leastRecentLocked(), "capacity")
	}
	sess := newSession(id, s.loader, now, s.windowTTL)
	s.sessions[id] = sess
	log.Info().Str("session", id).Int("sessions", len(s.sessions)).Msg("service: session started")
	return sess
}

func (s *ShipmentService) evictIdleLocked(now time.Time) {
	for _, sess := range s.sessions {
		if now.Sub(sess.lastUsed) >= s.sessionTTL {
			s.evictLocked(sess, "idle")
		}
	}
}

func (s *ShipmentService) leastRecentLocked() *Session {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastUsed.Before(oldest.lastUsed) {
			oldest = sess
		}
	}
	return oldest
}

func (s *ShipmentService) evictLocked(sess *Session, reason string) {
	delete(s.sessions, sess.ID)
	sess.close()
	log.Info().Str("session", sess.ID).Str("reason", reason).Msg("service: session evicted")
}

// EndSession drops a session. It reports whether the session existed.
func (s *ShipmentService) EndSession(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
		log.Info().Str("session", id).Msg("service: session ended")
	}
	return ok
}

func (s *ShipmentService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dashboard fetches the selection's windows while the session cache loads,
// then enriches the unshipped orders and builds every category matrix. Only a
// cancelled context fails the call; store failures degrade the result.
func (s *ShipmentService) Dashboard(ctx context.Context, sessionID string, sel orders.Selection, refresh bool) (*Dashboard, error) {
	sess := s.Session(sessionID)
	if refresh {
		sess.memo.Clear()
	}

	var (
		products *catalog.ProductCache
		set      orders.OrderSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = sess.Cache(gctx)
		return err
	})
	g.Go(func() error {
		set = s.aggregator.Aggregate(gctx, sel, sess.memo)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := shipment.Enrich(set.Unshipped(), products)
	loc := s.aggregator.Location()
	sat, sun := sel.Toggles(loc)

	d := &Dashboard{
		SessionID:   sess.ID,
		Date:        orders.WindowFor(sel.Date, loc).Date(),
		Location:    sel.Location,
		Saturday:    sat,
		Sunday:      sun,
		Windows:     set.Windows,
		Processing:  set.Processing,
		Shipped:     set.Shipped,
		TotalOrders: set.Total,
		TotalItems:  len(items),
		Unmatched:   shipment.Unmatched(items),
		CatalogSize: products.Len(),
		Matrices:    shipment.BuildAll(items),
		Items:       items,
		Orders:      set.Orders,
	}
	if err := products.LoadErr(); err != nil {
		d.CatalogError = err.Error()
	}
	if err := set.Err(); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Str("date", d.Date).Msg("service: dashboard built with failed windows")
	}
	return d, nil
}

// Items returns the enriched items of the selection, optionally limited to
// one category.
func (s *ShipmentService) Items(ctx context.Context, sessionID string, sel orders.Selection, category domain.Category, refresh bool) ([]domain.EnrichedLineItem, error) {
	d, err := s.Dashboard(ctx, sessionID, sel, refresh)
	if err != nil {
		return nil, err
	}
	if category == "" {
		if d.Items == nil {
			return []domain.EnrichedLineItem{}, nil
		}
		return d.Items, nil
	}
	return shipment.FilterByCategory(d.Items, category), nil
}

// SearchOrder matches orderNumber as a case-insensitive substring against the
// selection's aggregated orders, falling back to an exact store lookup.
func (s *ShipmentService) SearchOrder(ctx context.Context, sessionID string, sel orders.Selection, orderNumber string) ([]domain.OrderRecord, error) {
	needle := strings.ToLower(strings.TrimSpace(orderNumber))
	if needle == "" {
		return nil, fmt.Errorf("%w: empty order number", ErrOrderNotFound)
	}

	sess := s.Session(sessionID)
	set := s.aggregator.Aggregate(ctx, sel, sess.memo)
	var matches []domain.OrderRecord
	for _, o := range set.Orders {
		if strings.Contains(strings.ToLower(o.OrderNumber), needle) {
			matches = append(matches, o)
		}
	}
	if len(matches) > 0 {
		return matches, nil
	}

	o, err := s.orders.FindByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
		}
		return nil, fmt.Errorf("search order %s: %w", orderNumber, err)
	}
	return []domain.OrderRecord{*o}, nil
}

// Location is the time zone calendar dates are resolved in.
func (s *ShipmentService) Location() *time.Location {
	return s.aggregator.Location()
}
