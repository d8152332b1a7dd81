package unitturn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Drafts is the storage used for in-progress unit turns.
type Drafts interface {
	Put(ctx context.Context, d Draft) error
	Get(ctx context.Context, id string) (Draft, error)
	Update(ctx context.Context, id string, fn func(*Draft) error) (Draft, error)
	Delete(ctx context.Context, id string) error
}

// SaveRecorder receives save outcomes for instrumentation.
type SaveRecorder interface {
	RecordUnitTurnSave(lineItems int, projectCost, damageCharges float64)
}

// StartDraftInput describes a new unit turn.
type StartDraftInput struct {
	PropertyID string
	UnitLabel  string
	CreatedBy  string
}

// SaveInput controls the persisted status of a saved draft.
type SaveInput struct {
	Status Status
}

// DraftView is a draft together with its freshly derived totals.
type DraftView struct {
	Draft       Draft       `json:"draft"`
	Calculation Calculation `json:"calculation"`
}

// Service orchestrates drafts, calculations and persistence.
type Service struct {
	repo     Repository
	drafts   Drafts
	recorder SaveRecorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService constructs the unit-turn service. recorder may be nil.
func NewService(repo Repository, drafts Drafts, recorder SaveRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		drafts:   drafts,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Template returns a fresh default template with derived fields populated.
func (s *Service) Template() Template {
	return DefaultTemplate().Recalculate()
}

// Calculate derives totals for an arbitrary item collection.
func (s *Service) Calculate(items []Item) Calculation {
	return Calculate(items)
}

// StartDraft seeds a new draft from the catalog.
func (s *Service) StartDraft(ctx context.Context, in StartDraftInput) (DraftView, error) {
	now := s.now().UTC()
	d := Draft{
		ID:         s.newID(),
		PropertyID: in.PropertyID,
		UnitLabel:  in.UnitLabel,
		TemplateID: DefaultTemplateID,
		CreatedBy:  in.CreatedBy,
		Items:      FlattenItems(DefaultTemplate()),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.drafts.Put(ctx, d); err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: d, Calculation: Calculate(d.Items)}, nil
}

// GetDraft loads a draft and recomputes its totals.
func (s *Service) GetDraft(ctx context.Context, id string) (DraftView, error) {
	d, err := s.drafts.Get(ctx, id)
	if err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: d, Calculation: Calculate(d.Items)}, nil
}

// UpdateDraftItem applies one field edit to a draft item.
func (s *Service) UpdateDraftItem(ctx context.Context, draftID, itemID string, field Field, value any) (DraftView, error) {
	return s.mutateDraft(ctx, draftID, func(items []Item) ([]Item, error) {
		return UpdateItemField(items, itemID, field, value)
	})
}

// AttachDraftPhotos attaches photo references to a draft item.
func (s *Service) AttachDraftPhotos(ctx context.Context, draftID, itemID string, refs []PhotoRef) (DraftView, error) {
	return s.mutateDraft(ctx, draftID, func(items []Item) ([]Item, error) {
		return AttachPhotos(items, itemID, refs)
	})
}

func (s *Service) mutateDraft(ctx context.Context, draftID string, fn func([]Item) ([]Item, error)) (DraftView, error) {
	d, err := s.drafts.Update(ctx, draftID, func(d *Draft) error {
		items, err := fn(d.Items)
		if err != nil {
			return err
		}
		d.Items = items
		d.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return DraftView{}, err
	}
	return DraftView{Draft: d, Calculation: Calculate(d.Items)}, nil
}

// SaveDraft persists the draft totals and its active items, then discards the draft.
func (s *Service) SaveDraft(ctx context.Context, draftID string, in SaveInput) (*Instance, error) {
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}

	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}

	calc := Calculate(d.Items)
	totals := InstanceTotalsOf(calc, status)
	lines := ActiveLineItems(d.Items)
	now := s.now().UTC()
	inst := Instance{
		ID:                 d.ID,
		PropertyID:         d.PropertyID,
		UnitLabel:          d.UnitLabel,
		TemplateID:         d.TemplateID,
		Status:             totals.Status,
		TotalProjectCost:   totals.TotalProjectCost,
		TotalDamageCharges: totals.TotalDamageCharges,
		CreatedBy:          d.CreatedBy,
		CreatedAt:          now,
		UpdatedAt:          now,
		LineItems:          lines,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.CreateInstance(ctx, inst); err != nil {
			return err
		}
		for _, line := range lines {
			lineID, err := repo.InsertLineItem(ctx, inst.ID, line)
			if err != nil {
				return err
			}
			for _, ref := range line.Photos {
				if err := repo.InsertPhoto(ctx, lineID, ref); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save unit turn: %w", err)
	}

	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.logger.Warn("discard saved draft", slog.String("draft_id", draftID), slog.Any("error", err))
	}
	if s.recorder != nil {
		s.recorder.RecordUnitTurnSave(len(lines), inst.TotalProjectCost, inst.TotalDamageCharges)
	}
	s.logger.Info("unit turn saved",
		slog.String("instance_id", inst.ID),
		slog.Int("line_items", len(lines)),
		slog.Float64("project_cost", inst.TotalProjectCost),
		slog.Float64("damage_charges", inst.TotalDamageCharges),
	)
	return &inst, nil
}

// Get returns a persisted instance.
func (s *Service) Get(ctx context.Context, id string) (*Instance, error) {
	return s.repo.GetInstance(ctx, id)
}

// List returns persisted instances, newest first.
func (s *Service) List(ctx context.Context, propertyID string, limit, offset int) ([]Instance, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListInstances(ctx, propertyID, limit, offset)
}

// TransitionStatus moves a persisted instance through the workflow.
func (s *Service) TransitionStatus(ctx context.Context, id string, next Status) (*Instance, error) {
	inst, err := s.repo.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, inst.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	inst.Status = next
	inst.UpdatedAt = s.now().UTC()
	return inst, nil
}
