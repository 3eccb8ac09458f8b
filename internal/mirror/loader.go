package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher performs the bulk reads a mirror is populated from
type Fetcher interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListTracking(ctx context.Context) ([]domain.Tracking, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// LoadReport describes the outcome of a bulk load
type LoadReport struct {
	Attempts int
	Counts   map[domain.EntityKind]int
	Failed   map[domain.EntityKind]error
}

// OK reports whether every collection was fetched
func (r LoadReport) OK() bool {
	return len(r.Failed) == 0
}

type fetchResult struct {
	products []domain.Product
	tracking []domain.Tracking
	orders   []domain.Order
	failed   map[domain.EntityKind]error
}

func fetchAll(ctx context.Context, f Fetcher) fetchResult {
	var (
		res fetchResult
		mu  sync.Mutex
		g   errgroup.Group
	)
	res.failed = make(map[domain.EntityKind]error)
	fail := func(kind domain.EntityKind, err error) {
		mu.Lock()
		res.failed[kind] = err
		mu.Unlock()
	}
	g.Go(func() error {
		list, err := f.ListProducts(ctx)
		if err != nil {
			fail(domain.KindProduct, err)
			return nil
		}
		res.products = list
		return nil
	})
	g.Go(func() error {
		list, err := f.ListTracking(ctx)
		if err != nil {
			fail(domain.KindTracking, err)
			return nil
		}
		res.tracking = list
		return nil
	})
	g.Go(func() error {
		list, err := f.ListOrders(ctx)
		if err != nil {
			fail(domain.KindOrder, err)
			return nil
		}
		res.orders = list
		return nil
	})
	_ = g.Wait()
	return res
}

// install replaces every collection, a failed fetch leaves that collection empty
func (m *Mirror) install(res fetchResult, attempts int) LoadReport {
	m.Products.Replace(res.products)
	m.Tracking.Replace(res.tracking)
	m.Orders.Replace(res.orders)
	for kind, err := range res.failed {
		zap.L().Error("mirror: bulk fetch failed, continuing with empty collection",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	for _, kind := range domain.EntityKinds {
		m.Changed(kind)
	}
	return LoadReport{Attempts: attempts, Counts: m.Counts(), Failed: res.failed}
}

// LoadAll fetches the three collections in parallel. A failing fetch never
// blocks the others, the report lists what failed.
func (m *Mirror) LoadAll(ctx context.Context, f Fetcher) LoadReport {
	return m.install(fetchAll(ctx, f), 1)
}

// LoadWithRetry retries the bulk fetch until all three succeed, waiting
// backoff*n after attempt n. The last attempt is installed even when degraded.
func (m *Mirror) LoadWithRetry(ctx context.Context, f Fetcher, attempts int, backoff time.Duration) LoadReport {
	if attempts <= 0 {
		attempts = 3
	}
	var res fetchResult
	for i := 1; i <= attempts; i++ {
		res = fetchAll(ctx, f)
		if len(res.failed) == 0 || i == attempts {
			return m.install(res, i)
		}
		zap.L().Warn("mirror: bulk fetch incomplete, retrying",
			zap.Int("attempt", i),
			zap.Int("failed", len(res.failed)),
		)
		select {
		case <-ctx.Done():
			return m.install(res, i)
		case <-time.After(backoff * time.Duration(i)):
		}
	}
	return m.install(res, attempts)
}
