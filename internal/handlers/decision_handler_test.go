package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"vedtak/internal/middleware"
	"vedtak/internal/models"
	"vedtak/internal/timeline"

	"github.com/google/uuid"
)

var (
	testActor      = models.Actor{Ident: "Z990001", OrgUnit: "4812"}
	caseInstanceID = uuid.MustParse("0b7c9d1e-3f6a-4b2c-8d5e-1a2b3c4d5e6f")
)

// fakeDecisions records calls and returns whatever err is set
type fakeDecisions struct {
	err      error
	calls    []string
	actor    models.Actor
	comment  string
	reason   string
	caseID   int64
	subject  string
	date     time.Time
	history  []models.HistoryEntry
	timeline []timeline.Entry
}

func (f *fakeDecisions) op(name string, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	f.calls = append(f.calls, name)
	f.actor = actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.Decision{CaseInstanceID: id, Status: models.StatusDraft}, nil
}

func (f *fakeDecisions) CreateOrUpdate(_ context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	return f.op("upsert", id, actor)
}

func (f *fakeDecisions) Submit(_ context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	return f.op("submit", id, actor)
}

func (f *fakeDecisions) Attest(_ context.Context, id uuid.UUID, actor models.Actor, comment string) (*models.Decision, error) {
	f.comment = comment
	return f.op("attest", id, actor)
}

func (f *fakeDecisions) Reject(_ context.Context, id uuid.UUID, actor models.Actor, comment, reasonCode string) (*models.Decision, error) {
	f.comment, f.reason = comment, reasonCode
	return f.op("reject", id, actor)
}

func (f *fakeDecisions) SendToCoordination(_ context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	return f.op("coordinate", id, actor)
}

func (f *fakeDecisions) Coordinated(_ context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	return f.op("coordinated", id, actor)
}

func (f *fakeDecisions) Activate(_ context.Context, id uuid.UUID, actor models.Actor) (*models.Decision, error) {
	return f.op("activate", id, actor)
}

func (f *fakeDecisions) Reset(_ context.Context, id uuid.UUID, actor models.Actor, comment string) (*models.Decision, error) {
	f.comment = comment
	return f.op("reset", id, actor)
}

func (f *fakeDecisions) Get(_ context.Context, id uuid.UUID) (*models.Decision, error) {
	return f.op("get", id, models.Actor{})
}

func (f *fakeDecisions) ListForCase(_ context.Context, caseID int64) ([]models.Decision, error) {
	f.calls = append(f.calls, "list")
	f.caseID = caseID
	return nil, f.err
}

func (f *fakeDecisions) History(_ context.Context, _ uuid.UUID) ([]models.HistoryEntry, error) {
	f.calls = append(f.calls, "history")
	return f.history, f.err
}

func (f *fakeDecisions) Timeline(_ context.Context, subjectID string) ([]timeline.Entry, error) {
	f.calls = append(f.calls, "timeline")
	f.subject = subjectID
	return f.timeline, f.err
}

func (f *fakeDecisions) IsActiveOn(_ context.Context, subjectID string, date time.Time) (timeline.ActiveResult, error) {
	f.calls = append(f.calls, "active")
	f.subject, f.date = subjectID, date
	return timeline.ActiveResult{Active: true, ReferenceDate: date}, f.err
}

// withActor stands in for the auth middleware
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), testActor)))
	})
}

func newTestMux(fake *fakeDecisions) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewDecisionHandler(fake)
	h.now = func() time.Time { return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC) }
	h.Register(mux, withActor)
	return mux
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestLifecycleRoutes(t *testing.T) {
	base := "/api/v1/decisions/" + caseInstanceID.String()
	tests := []struct {
		path string
		body string
		call string
	}{
		{"/upsert", "", "upsert"},
		{"/submit", "", "submit"},
		{"/attest", "", "attest"},
		{"/reject", `{"reason_code":"WRONG_PERIOD"}`, "reject"},
		{"/coordinate", "", "coordinate"},
		{"/coordinated", "", "coordinated"},
		{"/activate", "", "activate"},
		{"/reset", "", "reset"},
	}

	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			fake := &fakeDecisions{}
			rr := serve(newTestMux(fake), http.MethodPost, base+tt.path, tt.body)

			if rr.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if len(fake.calls) != 1 || fake.calls[0] != tt.call {
				t.Fatalf("Expected call %q, got %v", tt.call, fake.calls)
			}
			if fake.actor != testActor {
				t.Errorf("Expected actor from context, got %+v", fake.actor)
			}

			var got models.Decision
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode decision: %v", err)
			}
			if got.CaseInstanceID != caseInstanceID {
				t.Errorf("Expected case instance %s, got %s", caseInstanceID, got.CaseInstanceID)
			}
		})
	}
}

func TestLifecycleRoutes_WrongMethod(t *testing.T) {
	rr := serve(newTestMux(&fakeDecisions{}), http.MethodGet, "/api/v1/decisions/"+caseInstanceID.String()+"/submit", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rr.Code)
	}
}

func TestAttest_PassesTrimmedComment(t *testing.T) {
	fake := &fakeDecisions{}
	rr := serve(newTestMux(fake), http.MethodPost, "/api/v1/decisions/"+caseInstanceID.String()+"/attest", `{"comment":"  looks right  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if fake.comment != "looks right" {
		t.Errorf("Expected trimmed comment, got %q", fake.comment)
	}
}

func TestReject_Validation(t *testing.T) {
	path := "/api/v1/decisions/" + caseInstanceID.String() + "/reject"

	fake := &fakeDecisions{}
	rr := serve(newTestMux(fake), http.MethodPost, path, `{"comment":"no reason"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without reason code, got %d", rr.Code)
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no service call, got %v", fake.calls)
	}

	rr = serve(newTestMux(fake), http.MethodPost, path, `{"reason_code":"X","unknown":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", rr.Code)
	}

	rr = serve(newTestMux(fake), http.MethodPost, path, `{"reason_code":"`+strings.Repeat("X", 65)+`"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for overlong reason code, got %d", rr.Code)
	}

	rr = serve(newTestMux(fake), http.MethodPost, path, `{"reason_code":" WRONG_PERIOD ","comment":"fix month"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if fake.reason != "WRONG_PERIOD" || fake.comment != "fix month" {
		t.Errorf("Expected reason and comment passed through, got %q %q", fake.reason, fake.comment)
	}
}

func TestInvalidCaseInstanceID(t *testing.T) {
	fake := &fakeDecisions{}
	rr := serve(newTestMux(fake), http.MethodPost, "/api/v1/decisions/not-a-uuid/submit", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Code != CodeBadRequest {
		t.Errorf("Expected code %s, got %s", CodeBadRequest, body.Code)
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no service call, got %v", fake.calls)
	}
}

func TestMissingActor(t *testing.T) {
	mux := http.NewServeMux()
	NewDecisionHandler(&fakeDecisions{}).Register(mux, func(h http.Handler) http.Handler { return h })

	rr := serve(mux, http.MethodPost, "/api/v1/decisions/"+caseInstanceID.String()+"/submit", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without actor, got %d", rr.Code)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid transition", &models.InvalidTransitionError{CaseInstanceID: caseInstanceID, Operation: "submit", Status: models.StatusAttested}, http.StatusConflict, models.CodeInvalidTransition},
		{"stale status", &models.StaleStatusError{CaseInstanceID: caseInstanceID, Expected: []models.DecisionStatus{models.StatusDraft}, Actual: models.StatusSubmitted}, http.StatusConflict, models.CodeStaleStatus},
		{"same actor", &models.SameActorError{CaseInstanceID: caseInstanceID, Actor: "Z990001"}, http.StatusBadRequest, models.CodeSameActor},
		{"incompatible category", &models.IncompatibleCategoryError{Category: models.CategoryDenial, RevisionReason: "DEATH"}, http.StatusBadRequest, models.CodeIncompatibleCategory},
		{"missing prerequisite", &models.MissingPrerequisiteError{CaseInstanceID: caseInstanceID, What: "benefit schedule"}, http.StatusPreconditionFailed, models.CodeMissingPrerequisite},
		{"external", &models.ExternalServiceError{Service: "case", Operation: "fetch_case", Err: errors.New("timeout")}, http.StatusBadGateway, models.CodeExternalService},
		{"not found", fmt.Errorf("load: %w", models.ErrDecisionNotFound), http.StatusNotFound, models.CodeNotFound},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDecisions{err: tt.err}
			rr := serve(newTestMux(fake), http.MethodPost, "/api/v1/decisions/"+caseInstanceID.String()+"/submit", "")

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			body := decodeError(t, rr)
			if body.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, body.Code)
			}
			if body.Detail == "" {
				t.Error("Expected detail")
			}
			if tt.wantCode == CodeInternal && strings.Contains(body.Detail, "connection reset") {
				t.Error("Internal error details must not leak")
			}
		})
	}
}

func TestGetAndHistory(t *testing.T) {
	fake := &fakeDecisions{}
	mux := newTestMux(fake)

	rr := serve(mux, http.MethodGet, "/api/v1/decisions/"+caseInstanceID.String(), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", rr.Code)
	}

	rr = serve(mux, http.MethodGet, "/api/v1/decisions/"+caseInstanceID.String()+"/history", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("History: expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("Expected empty history to encode as [], got %s", got)
	}
}

func TestListForCase(t *testing.T) {
	fake := &fakeDecisions{}
	mux := newTestMux(fake)

	rr := serve(mux, http.MethodGet, "/api/v1/cases/1234/decisions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if fake.caseID != 1234 {
		t.Errorf("Expected case 1234, got %d", fake.caseID)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}

	for _, bad := range []string{"abc", "0", "-4"} {
		rr = serve(mux, http.MethodGet, "/api/v1/cases/"+bad+"/decisions", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Case id %q: expected 400, got %d", bad, rr.Code)
		}
	}
}

func TestTimeline(t *testing.T) {
	fake := &fakeDecisions{}
	mux := newTestMux(fake)

	rr := serve(mux, http.MethodGet, "/api/v1/subjects/timeline", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without subject, got %d", rr.Code)
	}

	rr = serve(mux, http.MethodGet, "/api/v1/subjects/timeline?subject_id=01010010184", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for invalid control digits, got %d", rr.Code)
	}

	rr = serve(mux, http.MethodGet, "/api/v1/subjects/timeline?subject_id=01010010183", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if fake.subject != "01010010183" {
		t.Errorf("Expected subject passed through, got %q", fake.subject)
	}
}

func TestIsActiveOn(t *testing.T) {
	fake := &fakeDecisions{}
	mux := newTestMux(fake)

	rr := serve(mux, http.MethodGet, "/api/v1/subjects/active?subject_id=01010010183&date=2024-03-10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC); !fake.date.Equal(want) {
		t.Errorf("Expected date %v, got %v", want, fake.date)
	}
	var result timeline.ActiveResult
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.Active {
		t.Error("Expected active result")
	}

	rr = serve(mux, http.MethodGet, "/api/v1/subjects/active?subject_id=01010010183", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC); !fake.date.Equal(want) {
		t.Errorf("Expected today %v by default, got %v", want, fake.date)
	}

	rr = serve(mux, http.MethodGet, "/api/v1/subjects/active?subject_id=01010010183&date=15.06.2024", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", rr.Code)
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	big := `{"comment":"` + strings.Repeat("x", maxRequestBodyBytes) + `"}`
	rr := serve(newTestMux(&fakeDecisions{}), http.MethodPost, "/api/v1/decisions/"+caseInstanceID.String()+"/attest", big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rr.Code)
	}
}
