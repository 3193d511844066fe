package sync

import (
	"testing"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdjust(t *testing.T) {
	itemID := uuid.New()

	t.Run("valid with defaults", func(t *testing.T) {
		p, err := parseAdjust(map[string]interface{}{
			"itemId": itemID.String(),
			"delta":  float64(-3), // JSON numbers arrive as float64
		})
		require.NoError(t, err)
		assert.Equal(t, itemID, p.ItemID)
		assert.Equal(t, -3, p.Delta)
		assert.Equal(t, models.ActionAdjusted, p.Action)
	})

	t.Run("explicit action and reason", func(t *testing.T) {
		p, err := parseAdjust(map[string]interface{}{
			"itemId": itemID.String(),
			"delta":  -2,
			"action": models.ActionSold,
			"reason": "Morning sales",
		})
		require.NoError(t, err)
		assert.Equal(t, models.ActionSold, p.Action)
		assert.Equal(t, "Morning sales", p.Reason)
	})

	t.Run("missing itemId", func(t *testing.T) {
		_, err := parseAdjust(map[string]interface{}{"delta": 1})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("missing delta", func(t *testing.T) {
		_, err := parseAdjust(map[string]interface{}{"itemId": itemID.String()})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("fractional delta", func(t *testing.T) {
		_, err := parseAdjust(map[string]interface{}{
			"itemId": itemID.String(),
			"delta":  1.5,
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := parseAdjust(map[string]interface{}{
			"itemId": itemID.String(),
			"delta":  1,
			"action": "teleported",
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := parseAdjust(map[string]interface{}{
			"itemId": "not-a-uuid",
			"delta":  1,
		})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestParseCreateItem(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		p, err := parseCreateItem(map[string]interface{}{"name": "Beans"})
		require.NoError(t, err)
		assert.Equal(t, "Beans", p.Name)
		assert.Equal(t, 0, p.Quantity)
		assert.Equal(t, models.UnitPiece, p.Unit)
	})

	t.Run("full", func(t *testing.T) {
		p, err := parseCreateItem(map[string]interface{}{
			"name":         "Cooking Oil",
			"quantity":     float64(20),
			"unit":         models.UnitVolume,
			"minThreshold": float64(5),
			"category":     "Cooking",
			"tags":         []interface{}{"bulk", "fast-moving"},
			"expiryDate":   "2026-12-01T00:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, 20, p.Quantity)
		assert.Equal(t, models.UnitVolume, p.Unit)
		assert.Equal(t, []string{"bulk", "fast-moving"}, p.Tags)
		require.NotNil(t, p.ExpiryDate)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := parseCreateItem(map[string]interface{}{"quantity": 5})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := parseCreateItem(map[string]interface{}{"name": "Beans", "quantity": -1})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := parseCreateItem(map[string]interface{}{"name": "Beans", "unit": "crates"})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("bad expiry format", func(t *testing.T) {
		_, err := parseCreateItem(map[string]interface{}{"name": "Beans", "expiryDate": "tomorrow"})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestParseUpdateItem(t *testing.T) {
	id := uuid.New()

	t.Run("partial update keeps absent fields nil", func(t *testing.T) {
		p, err := parseUpdateItem(map[string]interface{}{
			"id":   id.String(),
			"name": "Renamed",
		})
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
		require.NotNil(t, p.Name)
		assert.Equal(t, "Renamed", *p.Name)
		assert.Nil(t, p.Category)
		assert.Nil(t, p.MinThreshold)
	})

	t.Run("quantity is not an update field", func(t *testing.T) {
		p, err := parseUpdateItem(map[string]interface{}{
			"id":       id.String(),
			"quantity": float64(50),
		})
		require.NoError(t, err)
		// The payload type has no quantity; the field is silently dropped.
		assert.Equal(t, id, p.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := parseUpdateItem(map[string]interface{}{"name": "X"})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestParseCreateTag(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := parseCreateTag(map[string]interface{}{
			"tagId": "DK-0001",
			"type":  models.TagTypeBox,
			"meta":  map[string]interface{}{"shelf": "A3"},
		})
		require.NoError(t, err)
		assert.Equal(t, "DK-0001", p.TagID)
		assert.Equal(t, models.TagTypeBox, p.Type)
		assert.Equal(t, "A3", p.Meta["shelf"])
	})

	t.Run("missing tagId", func(t *testing.T) {
		_, err := parseCreateTag(map[string]interface{}{"type": models.TagTypeItem})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})

	t.Run("bad type", func(t *testing.T) {
		_, err := parseCreateTag(map[string]interface{}{"tagId": "DK-0001", "type": "pallet"})
		assert.ErrorIs(t, err, ErrInvalidOperation)
	})
}

func TestParseDelete(t *testing.T) {
	id := uuid.New()

	p, err := parseDelete(map[string]interface{}{"id": id.String()})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)

	_, err = parseDelete(map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}
