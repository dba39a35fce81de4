package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/opsdash/internal/domain"
	"golang.org/x/sync/errgroup"
)

// WindowResult is the outcome of one window of an aggregated view.
type WindowResult struct {
	Kind   WindowKind           `json:"kind"`
	Date   string               `json:"date"`
	Start  int64                `json:"start"`
	End    int64                `json:"end"`
	Count  int                  `json:"count"`
	Cached bool                 `json:"cached"`
	Error  string               `json:"error,omitempty"`
	Orders []domain.OrderRecord `json:"-"`
	Err    error                `json:"-"`
}

// OrderSet is the union of the windows of a selection.
type OrderSet struct {
	Windows    []WindowResult       `json:"windows"`
	Orders     []domain.OrderRecord `json:"-"`
	Processing int                  `json:"processing"`
	Shipped    int                  `json:"shipped"`
	Total      int                  `json:"total"`
}

// Unshipped returns the orders still to be processed.
func (s OrderSet) Unshipped() []domain.OrderRecord {
	out := make([]domain.OrderRecord, 0, s.Processing)
	for _, o := range s.Orders {
		if !o.Shipped {
			out = append(out, o)
		}
	}
	return out
}

// Err joins the errors of every failed window, or returns nil.
func (s OrderSet) Err() error {
	var errs []error
	for _, w := range s.Windows {
		if w.Err != nil {
			errs = append(errs, w.Err)
		}
	}
	return errors.Join(errs...)
}

// DefaultMemoTTL bounds how long a memoized window may be reused.
const DefaultMemoTTL = time.Minute

type memoEntry struct {
	result   WindowResult
	storedAt time.Time
}

// Memo keeps the successful window results of one (date, location) view so
// toggling a weekend window does not re-query the others. Windows are reused
// only while fresh and only when the window set differs from the previous
// request; an identical repeat always goes back to the store.
type Memo struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	key     string
	last    string
	windows map[WindowKind]memoEntry
}

// NewMemo returns an empty memo. A ttl <= 0 means DefaultMemoTTL.
func NewMemo(ttl time.Duration) *Memo {
	if ttl <= 0 {
		ttl = DefaultMemoTTL
	}
	return &Memo{ttl: ttl, now: time.Now, windows: make(map[WindowKind]memoEntry)}
}

func memoKey(sel Selection, loc *time.Location) string {
	return WindowFor(sel.Date, loc).Date() + "|" + sel.Location
}

func kindSet(specs []WindowSpec) string {
	kinds := make([]string, len(specs))
	for i, s := range specs {
		kinds[i] = string(s.Kind)
	}
	return strings.Join(kinds, ",")
}

// begin records the window set of a request and reports whether memoized
// windows may serve it.
func (m *Memo) begin(key string, specs []WindowSpec) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set := kindSet(specs)
	reuse := m.key == key && m.last != set
	if m.key != key {
		m.key = key
		m.windows = make(map[WindowKind]memoEntry)
	}
	m.last = set
	return reuse
}

func (m *Memo) lookup(key string, kind WindowKind) (WindowResult, bool) {
	if m == nil {
		return WindowResult{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != key {
		return WindowResult{}, false
	}
	e, ok := m.windows[kind]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return WindowResult{}, false
	}
	return e.result, true
}

// store memoizes freshly fetched successful windows. Reused windows keep
// their original timestamp.
func (m *Memo) store(key string, results []WindowResult) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key != key {
		return
	}
	now := m.now()
	for _, r := range results {
		if r.Err == nil && !r.Cached {
			m.windows[r.Kind] = memoEntry{result: r, storedAt: now}
		}
	}
}

// Clear forgets every memoized window.
func (m *Memo) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	m.last = ""
	m.windows = make(map[WindowKind]memoEntry)
}

// Aggregator fetches the windows of a selection concurrently and unions them.
type Aggregator struct {
	fetcher WindowFetcher
	loc     *time.Location
}

func NewAggregator(fetcher WindowFetcher, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{fetcher: fetcher, loc: loc}
}

func (a *Aggregator) Location() *time.Location { return a.loc }

// Aggregate never fails as a whole: each window settles on its own and a
// failed window contributes no orders. memo may be nil.
func (a *Aggregator) Aggregate(ctx context.Context, sel Selection, memo *Memo) OrderSet {
	specs := sel.Windows(a.loc)
	key := memoKey(sel, a.loc)
	results := make([]WindowResult, len(specs))
	reuse := memo.begin(key, specs)

	var g errgroup.Group
	for i, spec := range specs {
		if reuse {
			if cached, ok := memo.lookup(key, spec.Kind); ok {
				cached.Cached = true
				results[i] = cached
				continue
			}
		}
		g.Go(func() error {
			orders, err := a.fetcher.Fetch(ctx, spec.Window, sel.Location)
			results[i] = newWindowResult(spec, orders, err)
			return nil
		})
	}
	// Window errors travel in the results; no goroutine returns one.
	g.Wait()

	memo.store(key, results)
	return union(results)
}

func newWindowResult(spec WindowSpec, orders []domain.OrderRecord, err error) WindowResult {
	r := WindowResult{
		Kind:   spec.Kind,
		Date:   spec.Window.Date(),
		Start:  spec.Window.StartMillis(),
		End:    spec.Window.EndMillis(),
		Orders: orders,
		Count:  len(orders),
		Err:    err,
	}
	if err != nil {
		r.Orders = nil
		r.Count = 0
		r.Error = err.Error()
	}
	return r
}

func union(results []WindowResult) OrderSet {
	set := OrderSet{Windows: make([]WindowResult, len(results))}
	for i, r := range results {
		set.Windows[i] = r
		set.Orders = append(set.Orders, r.Orders...)
	}

	sort.SliceStable(set.Orders, func(i, j int) bool {
		return set.Orders[i].TimeStamp > set.Orders[j].TimeStamp
	})

	for _, o := range set.Orders {
		if o.Shipped {
			set.Shipped++
		} else {
			set.Processing++
		}
	}
	set.Total = len(set.Orders)
	return set
}
