package domain

// EntityKind names one of the three synchronized collections
type EntityKind string

const (
	KindProduct  EntityKind = "product"
	KindTracking EntityKind = "tracking"
	KindOrder    EntityKind = "order"
)

var EntityKinds = []EntityKind{KindProduct, KindTracking, KindOrder}

// KeyField is the json field that carries the identity of the kind in delete payloads
func (k EntityKind) KeyField() string {
	switch k {
	case KindTracking:
		return "qrId"
	case KindOrder:
		return "orderId"
	default:
		return "id"
	}
}

func (k EntityKind) Valid() bool {
	switch k {
	case KindProduct, KindTracking, KindOrder:
		return true
	}
	return false
}
