// Package unitturnhttp exposes the unit-turn engine over JSON.
package unitturnhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"

	"github.com/turnkey/turnkey/internal/platform/httpx"
	"github.com/turnkey/turnkey/internal/unitturn"
	"github.com/turnkey/turnkey/internal/unitturn/export"
)

const (
	actorHeader   = "X-Actor"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type unitTurnService interface {
	Template() unitturn.Template
	Calculate(items []unitturn.Item) unitturn.Calculation
	StartDraft(ctx context.Context, in unitturn.StartDraftInput) (unitturn.DraftView, error)
	GetDraft(ctx context.Context, id string) (unitturn.DraftView, error)
	UpdateDraftItem(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error)
	AttachDraftPhotos(ctx context.Context, draftID, itemID string, refs []unitturn.PhotoRef) (unitturn.DraftView, error)
	SaveDraft(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error)
	Get(ctx context.Context, id string) (*unitturn.Instance, error)
	List(ctx context.Context, propertyID string, limit, offset int) ([]unitturn.Instance, error)
	TransitionStatus(ctx context.Context, id string, next unitturn.Status) (*unitturn.Instance, error)
}

// ExportQueue schedules background workbook exports.
type ExportQueue interface {
	EnqueueUnitTurnExport(ctx context.Context, instanceID, requestedBy string) error
}

// Handler wires HTTP endpoints for unit turns.
type Handler struct {
	logger    *slog.Logger
	service   unitTurnService
	exports   ExportQueue
	validator *validator.Validate
	renders   singleflight.Group
}

// NewHandler constructs a unit-turn HTTP handler. exports may be nil, in which case
// asynchronous export requests answer 503.
func NewHandler(logger *slog.Logger, service unitTurnService, exports ExportQueue) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	_ = v.RegisterValidation("costcode", func(fl validator.FieldLevel) bool {
		_, ok := unitturn.LookupCostCode(int(fl.Field().Int()))
		return ok
	})
	return &Handler{
		logger:    logger,
		service:   service,
		exports:   exports,
		validator: v,
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/unit-turns", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/cost-codes", h.costCodes)
		r.Get("/template", h.template)
		r.Post("/calculate", h.calculate)
		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", h.startDraft)
			r.Get("/{id}", h.getDraft)
			r.Patch("/{id}/items/{itemID}", h.updateItem)
			r.Post("/{id}/items/{itemID}/photos", h.attachPhotos)
			r.Post("/{id}/save", h.saveDraft)
		})
		r.Get("/{id}", h.getInstance)
		r.Post("/{id}/status", h.transition)
		r.Get("/{id}/export.xlsx", h.downloadExport)
		r.Post("/{id}/export", h.queueExport)
	})
}

func (h *Handler) costCodes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, unitturn.CostCodes())
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Template())
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Calculate(req.toItems()))
}

func (h *Handler) startDraft(w http.ResponseWriter, r *http.Request) {
	var req startDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = actor(r)
	}
	view, err := h.service.StartDraft(r.Context(), unitturn.StartDraftInput{
		PropertyID: strings.TrimSpace(req.PropertyID),
		UnitLabel:  strings.TrimSpace(req.UnitLabel),
		CreatedBy:  createdBy,
	})
	if err != nil {
		h.fail(w, "start draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	field, err := unitturn.ParseField(req.Field)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	if err := checkValue(field, req.Value); err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.UpdateDraftItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), field, req.Value)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// checkValue rejects negative or non-finite amounts and cost codes missing from the
// registry. Values that do not coerce are left for the engine to reject.
func checkValue(field unitturn.Field, value any) error {
	switch field {
	case unitturn.FieldQuantity, unitturn.FieldCostPerUnit, unitturn.FieldDamages, unitturn.FieldCostCode:
	default:
		return nil
	}
	n, err := cast.ToFloat64E(value)
	if err != nil {
		return nil
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%w: %s must be a finite number", httpx.ErrValidation, field)
	}
	if n < 0 {
		return fmt.Errorf("%w: %s must not be negative", httpx.ErrValidation, field)
	}
	if field != unitturn.FieldCostCode {
		return nil
	}
	if n != math.Trunc(n) || n > math.MaxInt32 {
		return fmt.Errorf("%w: cost code must be an integer", httpx.ErrValidation)
	}
	if _, ok := unitturn.LookupCostCode(int(n)); !ok {
		return fmt.Errorf("%w: unknown cost code %d", httpx.ErrValidation, int(n))
	}
	return nil
}

func (h *Handler) attachPhotos(w http.ResponseWriter, r *http.Request) {
	var req attachPhotosRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.AttachDraftPhotos(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.toRefs())
	if err != nil {
		h.fail(w, "attach photos", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	inst, err := h.service.SaveDraft(r.Context(), chi.URLParam(r, "id"), unitturn.SaveInput{Status: unitturn.Status(req.Status)})
	if err != nil {
		h.fail(w, "save draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inst)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: limit", httpx.ErrValidation))
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: offset", httpx.ErrValidation))
		return
	}
	items, err := h.service.List(r.Context(), strings.TrimSpace(q.Get("property_id")), limit, offset)
	if err != nil {
		h.fail(w, "list unit turns", err)
		return
	}
	if items == nil {
		items = []unitturn.Instance{}
	}
	httpx.JSON(w, http.StatusOK, instanceListResponse{Items: items, Limit: limit, Offset: offset})
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid integer")
	}
	return v, nil
}

func (h *Handler) getInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get unit turn", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	inst, err := h.service.TransitionStatus(r.Context(), id, unitturn.Status(req.Status))
	if err != nil {
		h.fail(w, "transition unit turn", err)
		return
	}
	h.logger.Info("unit turn status changed", slog.String("instance_id", id), slog.String("status", req.Status), slog.String("actor", actor(r)))
	httpx.JSON(w, http.StatusOK, inst)
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := h.renders.Do(id, func() (any, error) {
		inst, err := h.service.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return export.Workbook(inst)
	})
	if err != nil {
		h.fail(w, "render export", err)
		return
	}
	raw := v.([]byte)
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(id)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *Handler) queueExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		httpx.RespondError(w, fmt.Errorf("%w: export queue not configured", httpx.ErrUnavailable))
		return
	}
	id := chi.URLParam(r, "id")
	inst, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "queue export", err)
		return
	}
	if inst.Status != unitturn.StatusCompleted && inst.Status != unitturn.StatusExported {
		httpx.RespondError(w, fmt.Errorf("%w: unit turn is %s, complete it before exporting", httpx.ErrConflict, inst.Status))
		return
	}
	if err := h.exports.EnqueueUnitTurnExport(r.Context(), id, actor(r)); err != nil {
		h.fail(w, "queue export", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, exportQueuedResponse{InstanceID: id, Status: "queued"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body required")
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
			}
			err = errors.New(strings.Join(msgs, "; "))
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return false
	}
	return true
}

// fail translates engine errors into HTTP sentinels. Unexpected errors are logged and
// answered with a bare 500.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, unitturn.ErrNotFound), errors.Is(err, unitturn.ErrItemNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, unitturn.ErrUnknownField), errors.Is(err, unitturn.ErrInvalidFieldValue):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, unitturn.ErrInvalidStatus), errors.Is(err, unitturn.ErrConflict):
		err = fmt.Errorf("%w: %v", httpx.ErrConflict, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(actorHeader))
}
