package unitturn

import (
	"errors"
	"time"
)

var (
	// ErrItemNotFound is returned alongside the unchanged collection when an edit targets an id
	// that is not present.
	ErrItemNotFound = errors.New("unitturn: item not found")
	// ErrUnknownField indicates the edited field is not editable.
	ErrUnknownField = errors.New("unitturn: unknown field")
	// ErrInvalidFieldValue indicates the value cannot be coerced to the field type.
	ErrInvalidFieldValue = errors.New("unitturn: invalid field value")
	// ErrNotFound indicates a persisted instance or draft does not exist.
	ErrNotFound = errors.New("unitturn: not found")
	// ErrInvalidStatus indicates a disallowed workflow transition.
	ErrInvalidStatus = errors.New("unitturn: invalid status transition")
	// ErrConflict indicates a concurrent writer won: the draft kept changing underneath an
	// edit, or the draft was already saved.
	ErrConflict = errors.New("unitturn: conflicting update")
)

// Classification is the accounting bucket of a cost code. It never affects arithmetic.
type Classification string

const (
	ClassificationUT    Classification = "UT"
	ClassificationRM    Classification = "R&M"
	ClassificationCapEx Classification = "Cap Ex"
)

// CostCode is one row of the cost code registry.
type CostCode struct {
	Code           int            `json:"code"`
	GLAccount      string         `json:"gl_account"`
	Description    string         `json:"description"`
	Classification Classification `json:"classification"`
}

// PhotoRef is an opaque reference produced by the photo capture pipeline.
type PhotoRef struct {
	ID      string     `json:"id"`
	URL     string     `json:"url"`
	Caption string     `json:"caption,omitempty"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// Item is a cost-coded line of a unit-turn template. Total is a cache of
// Quantity*CostPerUnit and is never authoritative.
type Item struct {
	ID          string     `json:"id"`
	CostCode    int        `json:"cost_code"`
	Area        string     `json:"area"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	Units       string     `json:"units"`
	CostPerUnit float64    `json:"cost_per_unit"`
	Total       float64    `json:"total"`
	Damages     float64    `json:"damages"`
	Notes       string     `json:"notes,omitempty"`
	Photos      []PhotoRef `json:"photos,omitempty"`
}

// Active reports whether the item carries project cost quantity or damages.
func (i Item) Active() bool {
	return i.Quantity > 0 || i.Damages > 0
}

func (i Item) clone() Item {
	if i.Photos != nil {
		photos := make([]PhotoRef, len(i.Photos))
		copy(photos, i.Photos)
		i.Photos = photos
	}
	return i
}

// Section groups items under a named area of the unit.
type Section struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Items          []Item  `json:"items"`
	Subtotal       float64 `json:"subtotal"`
	DamageSubtotal float64 `json:"damage_subtotal"`
}

// Template is the full hierarchical unit-turn worksheet.
type Template struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Sections                []Section `json:"sections"`
	GrandTotalProjectCost   float64   `json:"grand_total_project_cost"`
	GrandTotalDamageCharges float64   `json:"grand_total_damage_charges"`
}

// SectionSummary is the computed view of a single section.
type SectionSummary struct {
	SectionName  string  `json:"section_name"`
	ItemCount    int     `json:"item_count"`
	ProjectTotal float64 `json:"project_total"`
	DamageTotal  float64 `json:"damage_total"`
}

// Totals holds the two independently tracked template-level sums.
type Totals struct {
	GrandTotalProjectCost   float64 `json:"grand_total_project_cost"`
	GrandTotalDamageCharges float64 `json:"grand_total_damage_charges"`
}

// Calculation is the consolidated view produced by Calculate. GrandTotal always equals
// TotalProjectCost; damages are reported only in TotalDamageCharges.
type Calculation struct {
	TotalProjectCost   float64          `json:"total_project_cost"`
	TotalDamageCharges float64          `json:"total_damage_charges"`
	GrandTotal         float64          `json:"grand_total"`
	SectionSummaries   []SectionSummary `json:"section_summaries"`
	TotalLineItems     int              `json:"total_line_items"`
}

// Status is the persisted unit-turn workflow state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExported   Status = "exported"
)

var statusTransitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted, StatusDraft},
	StatusCompleted:  {StatusExported, StatusInProgress},
	StatusExported:   nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the workflow allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InstanceTotals is the instance-level record handed to persistence.
type InstanceTotals struct {
	TotalProjectCost   float64 `json:"total_project_cost"`
	TotalDamageCharges float64 `json:"total_damage_charges"`
	Status             Status  `json:"status"`
}

// LineItem is the persisted shape of one active item.
type LineItem struct {
	ItemID       string     `json:"item_id"`
	CostCode     int        `json:"cost_code"`
	SectionName  string     `json:"section_name"`
	Description  string     `json:"description"`
	Quantity     float64    `json:"quantity"`
	Units        string     `json:"units"`
	CostPerUnit  float64    `json:"cost_per_unit"`
	DamageAmount float64    `json:"damage_amount"`
	ItemNotes    *string    `json:"item_notes,omitempty"`
	OrderIndex   int        `json:"order_index"`
	Photos       []PhotoRef `json:"photos,omitempty"`
}

// Instance is a saved unit turn.
type Instance struct {
	ID                 string     `json:"id"`
	PropertyID         string     `json:"property_id"`
	UnitLabel          string     `json:"unit_label"`
	TemplateID         string     `json:"template_id"`
	Status             Status     `json:"status"`
	TotalProjectCost   float64    `json:"total_project_cost"`
	TotalDamageCharges float64    `json:"total_damage_charges"`
	CreatedBy          string     `json:"created_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LineItems          []LineItem `json:"line_items,omitempty"`
}

// Draft is an in-progress unit turn kept outside the database until saved.
type Draft struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UnitLabel  string    `json:"unit_label"`
	TemplateID string    `json:"template_id"`
	CreatedBy  string    `json:"created_by,omitempty"`
	Items      []Item    `json:"items"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
