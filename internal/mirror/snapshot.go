package mirror

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const snapshotKey = "list"

// SnapshotStore keeps the last known collections in a local bolt file so a
// client can show data before the first bulk fetch returns
type SnapshotStore struct {
	db *bolt.DB
}

func OpenSnapshot(path string) (*SnapshotStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, kind := range domain.EntityKinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init snapshot")
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) put(kind domain.EntityKind, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(kind)).Put([]byte(snapshotKey), data)
	})
}

// get decodes the stored list of kind into v, reporting false when none was saved
func (s *SnapshotStore) get(kind domain.EntityKind, v interface{}) (bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket([]byte(kind)).Get([]byte(snapshotKey)); raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil || data == nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Save writes every collection of m
func (s *SnapshotStore) Save(m *Mirror) error {
	if err := s.put(domain.KindProduct, m.Products.List()); err != nil {
		return errors.Wrap(err, "save products")
	}
	if err := s.put(domain.KindTracking, m.Tracking.List()); err != nil {
		return errors.Wrap(err, "save tracking")
	}
	if err := s.put(domain.KindOrder, m.Orders.List()); err != nil {
		return errors.Wrap(err, "save orders")
	}
	return nil
}

// Restore loads saved collections into m and returns how many entries came back
func (s *SnapshotStore) Restore(m *Mirror) (int, error) {
	var (
		products []domain.Product
		tracking []domain.Tracking
		orders   []domain.Order
	)
	if ok, err := s.get(domain.KindProduct, &products); err != nil {
		return 0, errors.Wrap(err, "restore products")
	} else if ok {
		m.Products.Replace(products)
	}
	if ok, err := s.get(domain.KindTracking, &tracking); err != nil {
		return 0, errors.Wrap(err, "restore tracking")
	} else if ok {
		m.Tracking.Replace(tracking)
	}
	if ok, err := s.get(domain.KindOrder, &orders); err != nil {
		return 0, errors.Wrap(err, "restore orders")
	} else if ok {
		m.Orders.Replace(orders)
	}
	n := len(products) + len(tracking) + len(orders)
	zap.L().Info("mirror: snapshot restored", zap.Int("entries", n))
	return n, nil
}
