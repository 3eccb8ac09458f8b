package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/mirror"
	"github.com/talkincode/shopsync/pkg/common"
	"go.uber.org/zap"
)

// API is the remote store the coordinator persists to
type API interface {
	CreateProduct(ctx context.Context, p *domain.Product, ref string) (*domain.Product, error)
	PatchProduct(ctx context.Context, id string, fields map[string]interface{}) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateTracking(ctx context.Context, t *domain.Tracking) (*domain.Tracking, error)
	UpdateTracking(ctx context.Context, qrID string, fields map[string]interface{}) (*domain.Tracking, error)
	DeleteTracking(ctx context.Context, qrID string) error

	CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error)
	UpdateOrder(ctx context.Context, orderID string, fields map[string]interface{}) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

type Options struct {
	Workers int
	// Timeout bounds every background request
	Timeout time.Duration
	// MaxRetries caps how often a journaled failure is retried
	MaxRetries int
}

// Failure is a background persist that did not reach the store.
// The optimistic mirror state it belongs to is kept.
type Failure struct {
	ID       string            `json:"id"`
	Op       string            `json:"op"`
	Kind     domain.EntityKind `json:"kind"`
	Key      string            `json:"key"`
	Err      string            `json:"error"`
	Attempts int               `json:"attempts"`
	At       time.Time         `json:"at"`
	run      func(ctx context.Context) error
}

type task struct {
	op   string
	kind domain.EntityKind
	key  string
	run  func(ctx context.Context) error
}

type queued struct {
	t     task
	prior *Failure
	done  func()
}

// lane holds the pending tasks of one entity. Its tasks run one at a time in
// submission order.
type lane struct {
	queue   []queued
	creates int
}

func laneID(kind domain.EntityKind, key string) string {
	return string(kind) + "/" + key
}

// Coordinator applies mutations to the mirror first and persists them in the background
type Coordinator struct {
	mirror *mirror.Mirror
	api    API
	pool   *ants.Pool
	opts   Options
	wg     sync.WaitGroup

	mu       sync.Mutex
	created  map[string]string            // provisional id -> store id
	deferred map[string][]func(id string) // ops waiting for a provisional create
	failures map[string]*Failure

	laneMu sync.Mutex
	lanes  map[string]*lane

	sched *cron.Cron
}

func New(m *mirror.Mirror, api API, opts Options) (*Coordinator, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(r interface{}) {
		zap.L().Error("coordinator: background task panic", zap.Any("recover", r))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "coordinator pool")
	}
	return &Coordinator{
		mirror:   m,
		api:      api,
		pool:     pool,
		opts:     opts,
		created:  make(map[string]string),
		deferred: make(map[string][]func(string)),
		failures: make(map[string]*Failure),
		lanes:    make(map[string]*lane),
	}, nil
}

func (c *Coordinator) Mirror() *mirror.Mirror {
	return c.mirror
}

// submit queues t behind the earlier tasks of the same entity and journals its failure
func (c *Coordinator) submit(t task) {
	c.enqueue(queued{t: t})
}

func (c *Coordinator) enqueue(q queued) {
	c.wg.Add(1)
	id := laneID(q.t.kind, q.t.key)
	c.laneMu.Lock()
	l, busy := c.lanes[id]
	if !busy {
		l = &lane{}
		c.lanes[id] = l
	}
	l.queue = append(l.queue, q)
	if q.t.op == OpCreate {
		l.creates++
	}
	c.laneMu.Unlock()
	if !busy {
		// Submit blocks on a saturated pool and enqueue also runs inside workers
		go c.start(id)
	}
}

func (c *Coordinator) start(id string) {
	if err := c.pool.Submit(func() { c.drain(id) }); err != nil {
		c.laneMu.Lock()
		l := c.lanes[id]
		delete(c.lanes, id)
		c.laneMu.Unlock()
		for _, q := range l.queue {
			c.record(q.t, q.prior, errors.Wrap(err, "submit"))
			c.finish(q)
		}
	}
}

func (c *Coordinator) drain(id string) {
	for {
		c.laneMu.Lock()
		l := c.lanes[id]
		if len(l.queue) == 0 {
			delete(c.lanes, id)
			c.laneMu.Unlock()
			return
		}
		q := l.queue[0]
		l.queue = l.queue[1:]
		c.laneMu.Unlock()

		c.execute(q.t, q.prior)

		if q.t.op == OpCreate {
			c.laneMu.Lock()
			l.creates--
			c.laneMu.Unlock()
		}
		c.finish(q)
	}
}

func (c *Coordinator) finish(q queued) {
	if q.done != nil {
		q.done()
	}
	c.wg.Done()
}

// creating reports whether a create of the entity is queued or running
func (c *Coordinator) creating(kind domain.EntityKind, key string) bool {
	c.laneMu.Lock()
	defer c.laneMu.Unlock()
	l, ok := c.lanes[laneID(kind, key)]
	return ok && l.creates > 0
}

// queuedBehind reports whether tasks of the entity wait behind the running one
func (c *Coordinator) queuedBehind(kind domain.EntityKind, key string) bool {
	c.laneMu.Lock()
	defer c.laneMu.Unlock()
	l, ok := c.lanes[laneID(kind, key)]
	return ok && len(l.queue) > 0
}

func (c *Coordinator) execute(t task, prior *Failure) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	err := runSafe(ctx, t)
	switch {
	case err == nil:
		if prior != nil {
			c.mu.Lock()
			delete(c.failures, prior.ID)
			c.mu.Unlock()
			zap.L().Info("coordinator: retried persist succeeded",
				zap.String("op", t.op), zap.String("kind", string(t.kind)), zap.String("key", t.key))
		}
	case t.op == OpDelete && errors.Is(err, domain.ErrNotFound):
		// already gone
		if prior != nil {
			c.mu.Lock()
			delete(c.failures, prior.ID)
			c.mu.Unlock()
		}
	default:
		c.record(t, prior, err)
		return
	}
	if t.op == OpDelete {
		c.dropJournal(t.kind, t.key)
	}
}

// runSafe turns a panic into an error so the lane keeps draining
func runSafe(ctx context.Context, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return t.run(ctx)
}

// dropJournal forgets the failed creates and updates of a deleted entity so a
// retry cannot bring it back
func (c *Coordinator) dropJournal(kind domain.EntityKind, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, f := range c.failures {
		if f.Kind == kind && f.Key == key && f.Op != OpDelete {
			delete(c.failures, id)
		}
	}
}

func (c *Coordinator) record(t task, prior *Failure, err error) {
	zap.L().Error("coordinator: background persist failed",
		zap.String("op", t.op),
		zap.String("kind", string(t.kind)),
		zap.String("key", t.key),
		zap.Error(err),
	)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prior != nil {
		prior.Attempts++
		prior.Err = err.Error()
		prior.At = time.Now()
		return
	}
	f := &Failure{
		ID:       common.UUID(),
		Op:       t.op,
		Kind:     t.kind,
		Key:      t.key,
		Err:      err.Error(),
		Attempts: 1,
		At:       time.Now(),
		run:      t.run,
	}
	c.failures[f.ID] = f
}

// Failures lists the journaled background failures, oldest first
func (c *Coordinator) Failures() []Failure {
	c.mu.Lock()
	out := make([]Failure, 0, len(c.failures))
	for _, f := range c.failures {
		cp := *f
		cp.run = nil
		out = append(out, cp)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Dismiss drops a failure from the journal without retrying it
func (c *Coordinator) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failures[id]
	delete(c.failures, id)
	return ok
}

// Retry re-submits every journaled failure below the retry cap and waits for
// them. It returns how many were submitted.
func (c *Coordinator) Retry(ctx context.Context) int {
	c.mu.Lock()
	var due []*Failure
	for _, f := range c.failures {
		if f.Attempts <= c.opts.MaxRetries {
			due = append(due, f)
		}
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, f := range due {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		c.enqueue(queued{
			t:     task{op: f.Op, kind: f.Kind, key: f.Key, run: f.run},
			prior: f,
			done:  wg.Done,
		})
	}
	wg.Wait()
	return len(due)
}

// StartRetry retries the journal on a fixed interval until StopRetry
func (c *Coordinator) StartRetry(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	c.sched = cron.New()
	_, err := c.sched.AddFunc("@every "+interval.String(), func() {
		if n := c.Retry(context.Background()); n > 0 {
			zap.S().Infof("coordinator: retried %d failed persists", n)
		}
	})
	if err != nil {
		return errors.Wrap(err, "schedule retry")
	}
	c.sched.Start()
	return nil
}

func (c *Coordinator) StopRetry() {
	if c.sched != nil {
		<-c.sched.Stop().Done()
	}
}

// Wait blocks until every submitted background task finished
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close waits for in-flight persists and releases the pool
func (c *Coordinator) Close() {
	c.StopRetry()
	c.Wait()
	c.pool.Release()
}

// resolve maps a provisional product id to its store id. ok is false while
// the create is still in flight.
func (c *Coordinator) resolve(id string) (string, bool, error) {
	if !common.IsProvisional(id) {
		return id, true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(id)
}

func (c *Coordinator) resolveLocked(id string) (string, bool, error) {
	if !common.IsProvisional(id) {
		return id, true, nil
	}
	if real, ok := c.created[id]; ok {
		return real, true, nil
	}
	if _, ok := c.deferred[id]; ok {
		return "", false, nil
	}
	if real := c.storeAlias(id); real != "" {
		return real, true, nil
	}
	return "", false, errors.Wrapf(domain.ErrNotFound, "product %s", id)
}

func (c *Coordinator) storeAlias(id string) string {
	for _, k := range c.mirror.Products.Aliases(id) {
		if !common.IsProvisional(k) {
			return k
		}
	}
	return ""
}

func (c *Coordinator) productTask(op, real string, fn func(ctx context.Context, id string) error) task {
	return task{op: op, kind: domain.KindProduct, key: real, run: func(ctx context.Context) error {
		return fn(ctx, real)
	}}
}

// whenCreated runs fn with the store id of a product, now or once its create lands
func (c *Coordinator) whenCreated(op, id string, fn func(ctx context.Context, id string) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	real, ok, err := c.resolveLocked(id)
	if err != nil {
		return err
	}
	if ok {
		c.submit(c.productTask(op, real, fn))
		return nil
	}
	c.deferred[id] = append(c.deferred[id], func(real string) {
		c.submit(c.productTask(op, real, fn))
	})
	return nil
}

// hasDeferred reports whether ops wait for the create of a provisional product
func (c *Coordinator) hasDeferred(provisional string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred[provisional]) > 0
}

// markCreated records the store id of a provisional product and queues the
// ops deferred on it ahead of any later op on that id
func (c *Coordinator) markCreated(provisional, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created[provisional] = id
	pending := c.deferred[provisional]
	delete(c.deferred, provisional)
	for _, fn := range pending {
		fn(id)
	}
}
