package broadcast

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/talkincode/shopsync/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Op is the mutation an event reports
type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Kind is the event name, {entity}-{op}
type Kind string

const (
	ProductAdded    Kind = "product-added"
	ProductUpdated  Kind = "product-updated"
	ProductDeleted  Kind = "product-deleted"
	TrackingAdded   Kind = "tracking-added"
	TrackingUpdated Kind = "tracking-updated"
	TrackingDeleted Kind = "tracking-deleted"
	OrderAdded      Kind = "order-added"
	OrderUpdated    Kind = "order-updated"
	OrderDeleted    Kind = "order-deleted"
)

var Kinds = []Kind{
	ProductAdded, ProductUpdated, ProductDeleted,
	TrackingAdded, TrackingUpdated, TrackingDeleted,
	OrderAdded, OrderUpdated, OrderDeleted,
}

func KindOf(entity domain.EntityKind, op Op) Kind {
	return Kind(string(entity) + "-" + string(op))
}

// Entity returns the collection the event belongs to
func (k Kind) Entity() domain.EntityKind {
	e, _, _ := strings.Cut(string(k), "-")
	return domain.EntityKind(e)
}

func (k Kind) Op() Op {
	_, op, _ := strings.Cut(string(k), "-")
	return Op(op)
}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Origin identifies the client and provisional key behind a mutation
type Origin struct {
	Client string
	Ref    string
}

// Event is the envelope pushed on the realtime channel
type Event struct {
	Type   Kind                `json:"type"`
	Seq    uint64              `json:"seq"`
	Origin string              `json:"origin,omitempty"`
	Ref    string              `json:"ref,omitempty"`
	Data   jsoniter.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Type)
	}
	return json.Unmarshal(e.Data, v)
}

// DeletedKey extracts the identity carried by a delete payload
func (e Event) DeletedKey() (string, error) {
	var payload map[string]interface{}
	if err := e.Decode(&payload); err != nil {
		return "", err
	}
	field := e.Type.Entity().KeyField()
	key, ok := payload[field].(string)
	if !ok || key == "" {
		return "", fmt.Errorf("event %s missing %s", e.Type, field)
	}
	return key, nil
}

// FromOrigin reports whether the event was caused by the given client token
func (e Event) FromOrigin(client string) bool {
	return client != "" && e.Origin == client
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, err
	}
	if !e.Type.Valid() {
		return e, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}

// DeletePayload builds the {key} payload of a delete event
func DeletePayload(entity domain.EntityKind, key string) map[string]string {
	return map[string]string{entity.KeyField(): key}
}
