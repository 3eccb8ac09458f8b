package domain

import (
	"fmt"
)

// Patch is a validated partial update for tracking records and orders, keyed by json field name
type Patch map[string]interface{}

var (
	trackingReadOnly = map[string]bool{"qrId": true, "recordedAt": true, "_id": true}
	orderReadOnly    = map[string]bool{"orderId": true, "_id": true, "createdAt": true, "updatedAt": true}
)

// NormalizeTrackingPatch drops the key and store owned fields and type checks the rest.
// Updates carry the whole record, so unchanged fields are harmless.
func NormalizeTrackingPatch(raw map[string]interface{}) (Patch, error) {
	patch := stripReadOnly(raw, trackingReadOnly)
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty update", ErrValidation)
	}
	var scratch Tracking
	if err := decode(patch, &scratch, true); err != nil {
		return nil, err
	}
	return patch, nil
}

// ApplyPatch merges the patch into t. The qrId never changes.
func (t *Tracking) ApplyPatch(patch Patch) error {
	key, recorded := t.QRID, t.RecordedAt
	if err := decode(patch, t, true); err != nil {
		return err
	}
	t.QRID, t.RecordedAt = key, recorded
	return nil
}

// NormalizeOrderPatch drops the key and store owned fields and type checks the rest
func NormalizeOrderPatch(raw map[string]interface{}) (Patch, error) {
	patch := stripReadOnly(raw, orderReadOnly)
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty update", ErrValidation)
	}
	var scratch Order
	if err := decode(patch, &scratch, true); err != nil {
		return nil, err
	}
	return patch, nil
}

// ApplyPatch merges the patch into o. Items are replaced as a whole, the customer record is merged.
func (o *Order) ApplyPatch(patch Patch) error {
	key := o.OrderID
	if _, ok := patch["items"]; ok {
		o.Items = nil
	}
	if err := decode(patch, o, true); err != nil {
		return err
	}
	o.OrderID = key
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return nil
}

func stripReadOnly(raw map[string]interface{}, readOnly map[string]bool) Patch {
	patch := make(Patch, len(raw))
	for k, v := range raw {
		if readOnly[k] {
			continue
		}
		patch[k] = v
	}
	return patch
}
