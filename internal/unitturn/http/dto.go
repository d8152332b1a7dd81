package unitturnhttp

import (
	"time"

	"github.com/turnkey/turnkey/internal/unitturn"
)

type itemRequest struct {
	ID          string  `json:"id" validate:"required"`
	CostCode    int     `json:"cost_code" validate:"gt=0,costcode"`
	Description string  `json:"description" validate:"max=500"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Units       string  `json:"units" validate:"max=32"`
	CostPerUnit float64 `json:"cost_per_unit" validate:"gte=0"`
	Damages     float64 `json:"damages" validate:"gte=0"`
	Notes       string  `json:"notes" validate:"max=2000"`
}

type calculateRequest struct {
	Items []itemRequest `json:"items" validate:"dive"`
}

func (r calculateRequest) toItems() []unitturn.Item {
	items := make([]unitturn.Item, 0, len(r.Items))
	for _, in := range r.Items {
		items = append(items, unitturn.Item{
			ID:          in.ID,
			CostCode:    in.CostCode,
			Description: in.Description,
			Quantity:    in.Quantity,
			Units:       in.Units,
			CostPerUnit: in.CostPerUnit,
			Total:       in.Quantity * in.CostPerUnit,
			Damages:     in.Damages,
			Notes:       in.Notes,
		})
	}
	return items
}

type startDraftRequest struct {
	PropertyID string `json:"property_id" validate:"required,max=64"`
	UnitLabel  string `json:"unit_label" validate:"max=64"`
	CreatedBy  string `json:"created_by" validate:"omitempty,max=255"`
}

type updateItemRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

type photoRequest struct {
	ID      string     `json:"id" validate:"required,max=128"`
	URL     string     `json:"url" validate:"required,url"`
	Caption string     `json:"caption" validate:"max=500"`
	TakenAt *time.Time `json:"taken_at"`
}

type attachPhotosRequest struct {
	Photos []photoRequest `json:"photos" validate:"required,min=1,dive"`
}

func (r attachPhotosRequest) toRefs() []unitturn.PhotoRef {
	refs := make([]unitturn.PhotoRef, 0, len(r.Photos))
	for _, p := range r.Photos {
		refs = append(refs, unitturn.PhotoRef{ID: p.ID, URL: p.URL, Caption: p.Caption, TakenAt: p.TakenAt})
	}
	return refs
}

type saveRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=draft in_progress completed exported"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft in_progress completed exported"`
}

type instanceListResponse struct {
	Items  []unitturn.Instance `json:"items"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type exportQueuedResponse struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}
