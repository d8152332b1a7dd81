package unitturn

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Field names an editable item attribute.
type Field string

const (
	FieldQuantity    Field = "quantity"
	FieldCostPerUnit Field = "cost_per_unit"
	FieldDescription Field = "description"
	FieldNotes       Field = "notes"
	FieldDamages     Field = "damages"
	FieldCostCode    Field = "cost_code"
	FieldUnits       Field = "units"
	FieldArea        Field = "area"
)

var fieldsByKey = map[string]Field{
	"quantity":    FieldQuantity,
	"costperunit": FieldCostPerUnit,
	"description": FieldDescription,
	"notes":       FieldNotes,
	"damages":     FieldDamages,
	"costcode":    FieldCostCode,
	"units":       FieldUnits,
	"area":        FieldArea,
}

// ParseField accepts snake_case or camelCase field names.
func ParseField(raw string) (Field, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
	field, ok := fieldsByKey[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
	}
	return field, nil
}

// Recalculates reports whether editing f changes the item's project total.
func (f Field) Recalculates() bool {
	return f == FieldQuantity || f == FieldCostPerUnit
}

// UpdateItemField returns a new collection in which only the item matching itemID has field
// set to value. Editing quantity or cost per unit re-derives that item's Total in the same
// step. When itemID is absent the input is returned unchanged together with ErrItemNotFound;
// coercion failures return the input unchanged with ErrInvalidFieldValue.
func UpdateItemField(items []Item, itemID string, field Field, value any) ([]Item, error) {
	idx := -1
	for i := range items {
		if items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return items, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	updated := items[idx]
	if err := setField(&updated, field, value); err != nil {
		return items, err
	}
	if field.Recalculates() {
		updated.Total = ItemTotal(updated)
	}

	out := make([]Item, len(items))
	copy(out, items)
	out[idx] = updated
	return out, nil
}

func setField(item *Item, field Field, value any) error {
	switch field {
	case FieldQuantity, FieldCostPerUnit, FieldDamages:
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFieldValue, field, err)
		}
		switch field {
		case FieldQuantity:
			item.Quantity = n
		case FieldCostPerUnit:
			item.CostPerUnit = n
		default:
			item.Damages = n
		}
	case FieldCostCode:
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFieldValue, field, err)
		}
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
			return fmt.Errorf("%w: %s: %v is not an integer code", ErrInvalidFieldValue, field, value)
		}
		item.CostCode = int(n)
	case FieldDescription, FieldNotes, FieldUnits, FieldArea:
		s, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFieldValue, field, err)
		}
		switch field {
		case FieldDescription:
			item.Description = s
		case FieldNotes:
			item.Notes = s
		case FieldUnits:
			item.Units = s
		default:
			item.Area = s
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// AttachPhotos appends photo references to the matching item. Photos never influence totals.
func AttachPhotos(items []Item, itemID string, refs []PhotoRef) ([]Item, error) {
	for i := range items {
		if items[i].ID != itemID {
			continue
		}
		out := make([]Item, len(items))
		copy(out, items)
		updated := items[i].clone()
		updated.Photos = append(updated.Photos, refs...)
		out[i] = updated
		return out, nil
	}
	return items, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}
