package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/store"
	"github.com/talkincode/shopsync/pkg/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	colProducts = "products"
	colTracking = "trackings"
	colOrders   = "orders"
)

// Store is the document backend
type Store struct {
	client   *mongo.Client
	products *mongo.Collection
	tracking *mongo.Collection
	orders   *mongo.Collection
}

// Open connects with short timeouts so an unreachable cluster surfaces as ErrUnavailable quickly
func Open(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetServerSelectionTimeout(timeout).
		SetSocketTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(domain.ErrUnavailable, err.Error())
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(domain.ErrUnavailable, err.Error())
	}

	name := cfg.Database
	if name == "" {
		name = "shopsync"
	}
	db := client.Database(name)
	s := &Store{
		client:   client,
		products: db.Collection(colProducts),
		tracking: db.Collection(colTracking),
		orders:   db.Collection(colOrders),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	zap.L().Info("mongostore: connected",
		zap.String("database", name),
		zap.Uint64("max_pool", cfg.MaxPoolSize),
	)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{s.tracking, mongo.IndexModel{Keys: bson.D{{Key: "qrId", Value: 1}}, Options: unique}},
		{s.tracking, mongo.IndexModel{Keys: bson.D{{Key: "recordedAt", Value: -1}}}},
		{s.orders, mongo.IndexModel{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: unique}},
		{s.orders, mongo.IndexModel{Keys: bson.D{{Key: "orderDate", Value: -1}}}},
		{s.products, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}, {Key: "inStock", Value: 1}}}},
		{s.products, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	for _, ix := range indexes {
		if _, err := ix.col.Indexes().CreateOne(ctx, ix.model); err != nil {
			return translate(err, "create index")
		}
	}
	return nil
}

func (s *Store) Name() string {
	return "mongo"
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return errors.Wrap(domain.ErrUnavailable, err.Error())
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Products

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	item := *p
	item.ID = common.NextID()
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	if _, err := s.products.InsertOne(ctx, &item); err != nil {
		return nil, translate(err, "create product")
	}
	return &item, nil
}

func (s *Store) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 || limit > store.DefaultListLimit {
		limit = store.DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := s.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, translate(err, "list products")
	}
	out := make([]domain.Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err, "list products")
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err, "get product")
	}
	return &p, nil
}

func (s *Store) PatchProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	set := bson.M{"updatedAt": time.Now()}
	for k, v := range patch {
		set[k] = v
	}
	var p domain.Product
	err := s.products.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		return nil, translate(err, "patch product")
	}
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.products, bson.M{"_id": id}, "delete product")
}

// Tracking

func (s *Store) CreateTracking(ctx context.Context, t *domain.Tracking) (*domain.Tracking, error) {
	item := *t
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.RecordedAt = time.Now()
	if _, err := s.tracking.InsertOne(ctx, &item); err != nil {
		return nil, translate(err, "create tracking "+item.QRID)
	}
	return &item, nil
}

func (s *Store) ListTracking(ctx context.Context) ([]domain.Tracking, error) {
	out := make([]domain.Tracking, 0)
	cur, err := s.tracking.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "list tracking")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err, "list tracking")
	}
	return out, nil
}

func (s *Store) GetTracking(ctx context.Context, qrID string) (*domain.Tracking, error) {
	var t domain.Tracking
	if err := s.tracking.FindOne(ctx, bson.M{"qrId": qrID}).Decode(&t); err != nil {
		return nil, translate(err, "get tracking "+qrID)
	}
	return &t, nil
}

func (s *Store) UpdateTracking(ctx context.Context, qrID string, patch domain.Patch) (*domain.Tracking, error) {
	current, err := s.GetTracking(ctx, qrID)
	if err != nil {
		return nil, err
	}
	if err := current.ApplyPatch(patch); err != nil {
		return nil, err
	}
	set, err := pick(current, patch)
	if err != nil {
		return nil, err
	}
	var t domain.Tracking
	err = s.tracking.FindOneAndUpdate(ctx, bson.M{"qrId": qrID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err != nil {
		return nil, translate(err, "update tracking "+qrID)
	}
	return &t, nil
}

func (s *Store) DeleteTracking(ctx context.Context, qrID string) error {
	return s.deleteOne(ctx, s.tracking, bson.M{"qrId": qrID}, "delete tracking "+qrID)
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	item := *o
	item.Items = append([]domain.OrderItem(nil), o.Items...)
	if item.OrderID == "" {
		item.OrderID = common.NextID()
	}
	item.ApplyDefaults(time.Now())
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.orders.InsertOne(ctx, &item); err != nil {
		return nil, translate(err, "create order "+item.OrderID)
	}
	return &item, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0)
	cur, err := s.orders.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "orderDate", Value: -1}}))
	if err != nil {
		return nil, translate(err, "list orders")
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, translate(err, "list orders")
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := s.orders.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&o); err != nil {
		return nil, translate(err, "get order "+orderID)
	}
	return &o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, orderID string, patch domain.Patch) (*domain.Order, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := current.ApplyPatch(patch); err != nil {
		return nil, err
	}
	if err := current.Validate(); err != nil {
		return nil, err
	}
	set, err := pick(current, patch)
	if err != nil {
		return nil, err
	}
	var o domain.Order
	err = s.orders.FindOneAndUpdate(ctx, bson.M{"orderId": orderID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if err != nil {
		return nil, translate(err, "update order "+orderID)
	}
	return &o, nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	return s.deleteOne(ctx, s.orders, bson.M{"orderId": orderID}, "delete order "+orderID)
}

func (s *Store) deleteOne(ctx context.Context, col *mongo.Collection, filter bson.M, op string) error {
	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return translate(err, op)
	}
	if res.DeletedCount == 0 {
		return errors.Wrap(domain.ErrNotFound, op)
	}
	return nil
}

// pick marshals the merged document and keeps the top level fields named by the patch
func pick(merged interface{}, patch domain.Patch) (bson.M, error) {
	raw, err := bson.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	set := bson.M{}
	for k := range patch {
		if v, ok := doc[k]; ok {
			set[k] = v
		}
	}
	return set, nil
}

func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return errors.Wrap(domain.ErrNotFound, op)
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(domain.ErrDuplicateKey, op)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return errors.Wrapf(domain.ErrUnavailable, "%s: %v", op, err)
	default:
		return errors.Wrap(err, op)
	}
}
