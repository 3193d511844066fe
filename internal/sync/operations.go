package sync

import (
	"fmt"
	"math"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
)

// Operation payloads arrive as loose JSON maps. They are parsed into the
// typed forms below, with required-field validation, before any dispatch
// touches state. A malformed payload never reaches a handler.

type adjustPayload struct {
	ItemID uuid.UUID
	Delta  int
	Action string
	Reason string
}

type createItemPayload struct {
	Name         string
	SKU          string
	Description  string
	Quantity     int
	Unit         string
	Category     string
	Location     string
	Tags         []string
	MinThreshold int
	Image        string
	ExpiryDate   *time.Time
}

type createTagPayload struct {
	TagID          string
	Type           string
	AttachedItemID *uuid.UUID
	Meta           map[string]interface{}
}

type updateItemPayload struct {
	ID           uuid.UUID
	Name         *string
	SKU          *string
	Description  *string
	Unit         *string
	Category     *string
	Location     *string
	Tags         []string
	MinThreshold *int
	Image        *string
	ExpiryDate   *time.Time
}

type updateTagPayload struct {
	ID             uuid.UUID
	Type           *string
	AttachedItemID *uuid.UUID
	Meta           map[string]interface{}
}

type updateBusinessPayload struct {
	ID           uuid.UUID
	Name         *string
	Location     *string
	ContactPhone *string
	Language     *string
}

type deletePayload struct {
	ID uuid.UUID
}

func parseAdjust(p map[string]interface{}) (*adjustPayload, error) {
	itemID, ok, err := uuidField(p, "itemId")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: itemId is required for adjust operations", ErrInvalidOperation)
	}
	delta, ok, err := intField(p, "delta")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delta is required for adjust operations", ErrInvalidOperation)
	}

	out := &adjustPayload{ItemID: itemID, Delta: delta}
	out.Action, _ = stringField(p, "action")
	if out.Action == "" {
		out.Action = models.ActionAdjusted
	}
	if !models.ValidAction(out.Action) {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidOperation, out.Action)
	}
	out.Reason, _ = stringField(p, "reason")
	return out, nil
}

func parseCreateItem(p map[string]interface{}) (*createItemPayload, error) {
	name, ok := stringField(p, "name")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: name is required to create an item", ErrInvalidOperation)
	}

	out := &createItemPayload{Name: name, Unit: models.UnitPiece}
	var err error

	if out.Quantity, _, err = intField(p, "quantity"); err != nil {
		return nil, err
	}
	if out.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidOperation)
	}
	if unit, ok := stringField(p, "unit"); ok && unit != "" {
		if !models.ValidUnit(unit) {
			return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidOperation, unit)
		}
		out.Unit = unit
	}
	if out.MinThreshold, _, err = intField(p, "minThreshold"); err != nil {
		return nil, err
	}
	if out.MinThreshold < 0 {
		return nil, fmt.Errorf("%w: minThreshold must not be negative", ErrInvalidOperation)
	}
	out.SKU, _ = stringField(p, "sku")
	out.Description, _ = stringField(p, "description")
	out.Category, _ = stringField(p, "category")
	out.Location, _ = stringField(p, "location")
	out.Image, _ = stringField(p, "image")
	out.Tags = stringSliceField(p, "tags")
	if out.ExpiryDate, err = timeField(p, "expiryDate"); err != nil {
		return nil, err
	}
	return out, nil
}

func parseCreateTag(p map[string]interface{}) (*createTagPayload, error) {
	tagID, ok := stringField(p, "tagId")
	if !ok || tagID == "" {
		return nil, fmt.Errorf("%w: tagId is required to create a tag", ErrInvalidOperation)
	}
	tagType, _ := stringField(p, "type")
	if tagType != models.TagTypeItem && tagType != models.TagTypeBox {
		return nil, fmt.Errorf("%w: tag type must be %q or %q", ErrInvalidOperation, models.TagTypeItem, models.TagTypeBox)
	}

	out := &createTagPayload{TagID: tagID, Type: tagType}
	if id, ok, err := uuidField(p, "attachedItemId"); err != nil {
		return nil, err
	} else if ok {
		out.AttachedItemID = &id
	}
	if meta, ok := p["meta"].(map[string]interface{}); ok {
		out.Meta = meta
	}
	return out, nil
}

func parseUpdateItem(p map[string]interface{}) (*updateItemPayload, error) {
	id, err := requiredID(p)
	if err != nil {
		return nil, err
	}

	out := &updateItemPayload{ID: id}
	out.Name = optionalString(p, "name")
	out.SKU = optionalString(p, "sku")
	out.Description = optionalString(p, "description")
	out.Category = optionalString(p, "category")
	out.Location = optionalString(p, "location")
	out.Image = optionalString(p, "image")
	out.Tags = stringSliceField(p, "tags")

	if unit := optionalString(p, "unit"); unit != nil {
		if !models.ValidUnit(*unit) {
			return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidOperation, *unit)
		}
		out.Unit = unit
	}
	if v, ok, err := intField(p, "minThreshold"); err != nil {
		return nil, err
	} else if ok {
		if v < 0 {
			return nil, fmt.Errorf("%w: minThreshold must not be negative", ErrInvalidOperation)
		}
		out.MinThreshold = &v
	}
	if out.ExpiryDate, err = timeField(p, "expiryDate"); err != nil {
		return nil, err
	}
	return out, nil
}

func parseUpdateTag(p map[string]interface{}) (*updateTagPayload, error) {
	id, err := requiredID(p)
	if err != nil {
		return nil, err
	}

	out := &updateTagPayload{ID: id}
	if t := optionalString(p, "type"); t != nil {
		if *t != models.TagTypeItem && *t != models.TagTypeBox {
			return nil, fmt.Errorf("%w: tag type must be %q or %q", ErrInvalidOperation, models.TagTypeItem, models.TagTypeBox)
		}
		out.Type = t
	}
	if itemID, ok, err := uuidField(p, "attachedItemId"); err != nil {
		return nil, err
	} else if ok {
		out.AttachedItemID = &itemID
	}
	if meta, ok := p["meta"].(map[string]interface{}); ok {
		out.Meta = meta
	}
	return out, nil
}

func parseUpdateBusiness(p map[string]interface{}) (*updateBusinessPayload, error) {
	id, err := requiredID(p)
	if err != nil {
		return nil, err
	}
	return &updateBusinessPayload{
		ID:           id,
		Name:         optionalString(p, "name"),
		Location:     optionalString(p, "location"),
		ContactPhone: optionalString(p, "contactPhone"),
		Language:     optionalString(p, "language"),
	}, nil
}

func parseDelete(p map[string]interface{}) (*deletePayload, error) {
	id, err := requiredID(p)
	if err != nil {
		return nil, err
	}
	return &deletePayload{ID: id}, nil
}

// Field helpers. JSON numbers decode as float64; integral values are
// accepted, anything else is rejected.

func stringField(p map[string]interface{}, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func optionalString(p map[string]interface{}, key string) *string {
	if s, ok := stringField(p, key); ok {
		return &s
	}
	return nil
}

func intField(p map[string]interface{}, key string) (int, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidOperation, key)
		}
		return int(n), true, nil
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidOperation, key)
	}
}

func uuidField(p map[string]interface{}, key string) (uuid.UUID, bool, error) {
	s, ok := stringField(p, key)
	if !ok || s == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: %s is not a valid id", ErrInvalidOperation, key)
	}
	return id, true, nil
}

func timeField(p map[string]interface{}, key string) (*time.Time, error) {
	s, ok := stringField(p, key)
	if !ok || s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC3339 timestamp", ErrInvalidOperation, key)
	}
	return &t, nil
}

func stringSliceField(p map[string]interface{}, key string) []string {
	raw, ok := p[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func requiredID(p map[string]interface{}) (uuid.UUID, error) {
	id, ok, err := uuidField(p, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: id is required", ErrInvalidOperation)
	}
	return id, nil
}
