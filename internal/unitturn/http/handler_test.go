package unitturnhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/turnkey/turnkey/internal/platform/httpx"
	"github.com/turnkey/turnkey/internal/unitturn"
)

// ============================================================================
// STUBS
// ============================================================================

type stubService struct {
	startDraftFn   func(ctx context.Context, in unitturn.StartDraftInput) (unitturn.DraftView, error)
	getDraftFn     func(ctx context.Context, id string) (unitturn.DraftView, error)
	updateItemFn   func(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error)
	attachPhotosFn func(ctx context.Context, draftID, itemID string, refs []unitturn.PhotoRef) (unitturn.DraftView, error)
	saveDraftFn    func(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error)
	getFn          func(ctx context.Context, id string) (*unitturn.Instance, error)
	listFn         func(ctx context.Context, propertyID string, limit, offset int) ([]unitturn.Instance, error)
	transitionFn   func(ctx context.Context, id string, next unitturn.Status) (*unitturn.Instance, error)
}

func (s *stubService) Template() unitturn.Template {
	return unitturn.DefaultTemplate().Recalculate()
}

func (s *stubService) Calculate(items []unitturn.Item) unitturn.Calculation {
	return unitturn.Calculate(items)
}

func (s *stubService) StartDraft(ctx context.Context, in unitturn.StartDraftInput) (unitturn.DraftView, error) {
	if s.startDraftFn == nil {
		return unitturn.DraftView{}, errors.New("not implemented")
	}
	return s.startDraftFn(ctx, in)
}

func (s *stubService) GetDraft(ctx context.Context, id string) (unitturn.DraftView, error) {
	if s.getDraftFn == nil {
		return unitturn.DraftView{}, unitturn.ErrNotFound
	}
	return s.getDraftFn(ctx, id)
}

func (s *stubService) UpdateDraftItem(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error) {
	if s.updateItemFn == nil {
		return unitturn.DraftView{}, errors.New("not implemented")
	}
	return s.updateItemFn(ctx, draftID, itemID, field, value)
}

func (s *stubService) AttachDraftPhotos(ctx context.Context, draftID, itemID string, refs []unitturn.PhotoRef) (unitturn.DraftView, error) {
	if s.attachPhotosFn == nil {
		return unitturn.DraftView{}, errors.New("not implemented")
	}
	return s.attachPhotosFn(ctx, draftID, itemID, refs)
}

func (s *stubService) SaveDraft(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error) {
	if s.saveDraftFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.saveDraftFn(ctx, draftID, in)
}

func (s *stubService) Get(ctx context.Context, id string) (*unitturn.Instance, error) {
	if s.getFn == nil {
		return nil, unitturn.ErrNotFound
	}
	return s.getFn(ctx, id)
}

func (s *stubService) List(ctx context.Context, propertyID string, limit, offset int) ([]unitturn.Instance, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, propertyID, limit, offset)
}

func (s *stubService) TransitionStatus(ctx context.Context, id string, next unitturn.Status) (*unitturn.Instance, error) {
	if s.transitionFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.transitionFn(ctx, id, next)
}

type stubQueue struct {
	mu      sync.Mutex
	queued  []string
	actors  []string
	failErr error
}

func (q *stubQueue) EnqueueUnitTurnExport(ctx context.Context, instanceID, requestedBy string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failErr != nil {
		return q.failErr
	}
	q.queued = append(q.queued, instanceID)
	q.actors = append(q.actors, requestedBy)
	return nil
}

func newTestRouter(svc unitTurnService, queue ExportQueue) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, queue)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, "inspector@example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

// ============================================================================
// TESTS
// ============================================================================

func TestCalculateKeepsDamagesOutOfGrandTotal(t *testing.T) {
	router := newTestRouter(&stubService{}, nil)

	rr := do(t, router, http.MethodPost, "/unit-turns/calculate", map[string]any{
		"items": []map[string]any{
			{"id": "kit-01", "cost_code": 400, "quantity": 2, "cost_per_unit": 50},
			{"id": "kit-02", "cost_code": 400, "damages": 40},
			{"id": "mystery", "cost_code": 100, "quantity": 1, "cost_per_unit": 10},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var calc unitturn.Calculation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &calc))
	assert.Equal(t, 110.0, calc.TotalProjectCost)
	assert.Equal(t, 40.0, calc.TotalDamageCharges)
	assert.Equal(t, 110.0, calc.GrandTotal)
	assert.Equal(t, 3, calc.TotalLineItems)
	require.NotEmpty(t, calc.SectionSummaries)
	assert.Equal(t, unitturn.OtherSectionName, calc.SectionSummaries[len(calc.SectionSummaries)-1].SectionName)
}

func TestCalculateRejectsNegativeAmounts(t *testing.T) {
	router := newTestRouter(&stubService{}, nil)
	rr := do(t, router, http.MethodPost, "/unit-turns/calculate", map[string]any{
		"items": []map[string]any{{"id": "kit-01", "cost_code": 400, "quantity": -1, "cost_per_unit": 50}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeProblem(t, rr).Detail, "Quantity")
}

func TestCalculateRejectsUnknownCostCodes(t *testing.T) {
	router := newTestRouter(&stubService{}, nil)
	for _, item := range []map[string]any{
		{"id": "kit-01", "cost_code": 99999, "quantity": 1},
		{"id": "kit-01", "cost_code": 0, "quantity": 1},
		{"id": "kit-01", "quantity": 1},
	} {
		rr := do(t, router, http.MethodPost, "/unit-turns/calculate", map[string]any{"items": []map[string]any{item}})
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v", item)
		assert.Contains(t, decodeProblem(t, rr).Detail, "CostCode")
	}
}

func TestTemplateAndCostCodes(t *testing.T) {
	router := newTestRouter(&stubService{}, nil)

	rr := do(t, router, http.MethodGet, "/unit-turns/template", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tpl unitturn.Template
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tpl))
	assert.Equal(t, unitturn.DefaultTemplateID, tpl.ID)
	assert.NotEmpty(t, tpl.Sections)

	rr = do(t, router, http.MethodGet, "/unit-turns/cost-codes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var codes []unitturn.CostCode
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &codes))
	assert.Equal(t, unitturn.CostCodes(), codes)
}

func TestStartDraftDefaultsCreatorToActor(t *testing.T) {
	var captured unitturn.StartDraftInput
	svc := &stubService{
		startDraftFn: func(ctx context.Context, in unitturn.StartDraftInput) (unitturn.DraftView, error) {
			captured = in
			return unitturn.DraftView{Draft: unitturn.Draft{ID: "d-1", PropertyID: in.PropertyID}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodPost, "/unit-turns/drafts", map[string]any{"property_id": " prop-1 ", "unit_label": "4A"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "prop-1", captured.PropertyID)
	assert.Equal(t, "inspector@example.com", captured.CreatedBy)

	rr = do(t, router, http.MethodPost, "/unit-turns/drafts", map[string]any{"unit_label": "4A"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateItemMapsErrors(t *testing.T) {
	var gotField unitturn.Field
	svc := &stubService{
		updateItemFn: func(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error) {
			gotField = field
			switch itemID {
			case "ghost":
				return unitturn.DraftView{}, unitturn.ErrItemNotFound
			case "bad":
				return unitturn.DraftView{}, unitturn.ErrInvalidFieldValue
			}
			return unitturn.DraftView{Draft: unitturn.Draft{ID: draftID}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", map[string]any{"field": "costPerUnit", "value": 12.5})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, unitturn.FieldCostPerUnit, gotField)

	rr = do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/ghost", map[string]any{"field": "quantity", "value": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/bad", map[string]any{"field": "quantity", "value": "lots"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", map[string]any{"field": "colour", "value": "red"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", map[string]any{"field": "damages", "value": -5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateItemRejectsNonFiniteAmounts(t *testing.T) {
	calls := 0
	svc := &stubService{
		updateItemFn: func(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error) {
			calls++
			return unitturn.DraftView{Draft: unitturn.Draft{ID: draftID}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	for _, body := range []map[string]any{
		{"field": "quantity", "value": "NaN"},
		{"field": "costPerUnit", "value": "+Inf"},
		{"field": "damages", "value": "-Inf"},
	} {
		rr := do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v", body)
		assert.Contains(t, decodeProblem(t, rr).Detail, "finite", "%v", body)
	}
	assert.Zero(t, calls)
}

func TestUpdateItemValidatesCostCodes(t *testing.T) {
	var got []any
	svc := &stubService{
		updateItemFn: func(ctx context.Context, draftID, itemID string, field unitturn.Field, value any) (unitturn.DraftView, error) {
			got = append(got, value)
			return unitturn.DraftView{Draft: unitturn.Draft{ID: draftID}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	for _, value := range []any{99999, 0, 410.9, "410.5"} {
		rr := do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", map[string]any{"field": "costCode", "value": value})
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v", value)
	}
	assert.Empty(t, got)

	rr := do(t, router, http.MethodPatch, "/unit-turns/drafts/d-1/items/kit-01", map[string]any{"field": "costCode", "value": 410})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []any{410.0}, got)
}

func TestAttachPhotosValidatesRefs(t *testing.T) {
	var got []unitturn.PhotoRef
	svc := &stubService{
		attachPhotosFn: func(ctx context.Context, draftID, itemID string, refs []unitturn.PhotoRef) (unitturn.DraftView, error) {
			got = refs
			return unitturn.DraftView{}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/items/kit-01/photos", map[string]any{
		"photos": []map[string]any{{"id": "p-1", "url": "https://cdn.example/p-1.jpg"}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)

	rr = do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/items/kit-01/photos", map[string]any{
		"photos": []map[string]any{{"id": "p-2", "url": "not a url"}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/items/kit-01/photos", map[string]any{"photos": []any{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveDraftWithAndWithoutBody(t *testing.T) {
	var statuses []unitturn.Status
	svc := &stubService{
		saveDraftFn: func(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error) {
			statuses = append(statuses, in.Status)
			return &unitturn.Instance{ID: draftID, Status: unitturn.StatusDraft}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/save", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/save", map[string]any{"status": "completed"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, router, http.MethodPost, "/unit-turns/drafts/d-1/save", map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Equal(t, []unitturn.Status{"", unitturn.StatusCompleted}, statuses)
}

func TestSaveMissingDraftIs404(t *testing.T) {
	svc := &stubService{
		saveDraftFn: func(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error) {
			return nil, unitturn.ErrNotFound
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodPost, "/unit-turns/drafts/ghost/save", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSaveConflictIs409(t *testing.T) {
	svc := &stubService{
		saveDraftFn: func(ctx context.Context, draftID string, in unitturn.SaveInput) (*unitturn.Instance, error) {
			return nil, fmt.Errorf("save unit turn: %w", unitturn.ErrConflict)
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodPost, "/unit-turns/drafts/d-1/save", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUnexpectedErrorsHideDetail(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, id string) (*unitturn.Instance, error) {
			return nil, errors.New("pg: connection reset")
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/unit-turns/inst-1", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")
}

func TestListPassesPaging(t *testing.T) {
	var gotProperty string
	var gotLimit, gotOffset int
	svc := &stubService{
		listFn: func(ctx context.Context, propertyID string, limit, offset int) ([]unitturn.Instance, error) {
			gotProperty, gotLimit, gotOffset = propertyID, limit, offset
			return []unitturn.Instance{{ID: "a"}}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodGet, "/unit-turns?property_id=prop-1&limit=10&offset=20", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "prop-1", gotProperty)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)

	rr = do(t, router, http.MethodGet, "/unit-turns?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransitionConflict(t *testing.T) {
	svc := &stubService{
		transitionFn: func(ctx context.Context, id string, next unitturn.Status) (*unitturn.Instance, error) {
			if next == unitturn.StatusExported {
				return nil, unitturn.ErrInvalidStatus
			}
			return &unitturn.Instance{ID: id, Status: next}, nil
		},
	}
	router := newTestRouter(svc, nil)

	rr := do(t, router, http.MethodPost, "/unit-turns/inst-1/status", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPost, "/unit-turns/inst-1/status", map[string]any{"status": "exported"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDownloadExportStreamsWorkbook(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, id string) (*unitturn.Instance, error) {
			return &unitturn.Instance{
				ID:     id,
				Status: unitturn.StatusCompleted,
				LineItems: []unitturn.LineItem{
					{ItemID: "all-01", CostCode: 100, SectionName: "Whole Unit", Quantity: 1, CostPerUnit: 175},
				},
			}, nil
		},
	}
	rr := do(t, newTestRouter(svc, nil), http.MethodGet, "/unit-turns/inst-7/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxMediaType, rr.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rr.Header().Get("Content-Disposition"), "unit-turn-inst-7.xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Line Items")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDownloadExportSurvivesCallerCancellation(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, id string) (*unitturn.Instance, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &unitturn.Instance{ID: id, Status: unitturn.StatusCompleted}, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/unit-turns/inst-7/export.xlsx", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	newTestRouter(svc, nil).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestQueueExport(t *testing.T) {
	status := unitturn.StatusInProgress
	svc := &stubService{
		getFn: func(ctx context.Context, id string) (*unitturn.Instance, error) {
			return &unitturn.Instance{ID: id, Status: status}, nil
		},
	}
	queue := &stubQueue{}
	router := newTestRouter(svc, queue)

	rr := do(t, router, http.MethodPost, "/unit-turns/inst-1/export", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, queue.queued)

	status = unitturn.StatusCompleted
	rr = do(t, router, http.MethodPost, "/unit-turns/inst-1/export", nil)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []string{"inst-1"}, queue.queued)
	assert.Equal(t, []string{"inspector@example.com"}, queue.actors)

	queue.failErr = errors.New("redis down")
	rr = do(t, router, http.MethodPost, "/unit-turns/inst-1/export", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestQueueExportWithoutQueue(t *testing.T) {
	svc := &stubService{}
	rr := do(t, newTestRouter(svc, nil), http.MethodPost, "/unit-turns/inst-1/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
