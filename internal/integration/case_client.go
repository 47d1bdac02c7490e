package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"vedtak/internal/config"
	"vedtak/internal/models"

	"github.com/google/uuid"
)

// CaseClient talks to the case-tracking service
type CaseClient struct {
	c *client
}

// NewCaseClient creates a case service client. httpClient may be nil.
func NewCaseClient(endpoint config.ServiceEndpoint, token string, httpClient *http.Client) *CaseClient {
	return &CaseClient{c: newClient("case", endpoint, token, httpClient)}
}

type permissionResponse struct {
	Allowed bool `json:"allowed"`
}

type transitionRequest struct {
	Status models.DecisionStatus `json:"status"`
	Note   models.TransitionNote `json:"note"`
}

type assignmentRequest struct {
	Ident   string `json:"ident"`
	OrgUnit string `json:"org_unit"`
}

func instancePath(id uuid.UUID, suffix string) string {
	return "/api/case-instances/" + url.PathEscape(id.String()) + suffix
}

// FetchCase returns nil when the case instance is unknown
func (cc *CaseClient) FetchCase(ctx context.Context, caseInstanceID uuid.UUID) (*models.CaseSnapshot, error) {
	var snapshot models.CaseSnapshot
	found, err := cc.c.do(ctx, http.MethodGet, instancePath(caseInstanceID, ""), nil, &snapshot)
	if err != nil || !found {
		return nil, err
	}
	return &snapshot, nil
}

func (cc *CaseClient) CanSubmit(ctx context.Context, caseInstanceID uuid.UUID) (bool, error) {
	return cc.permission(ctx, caseInstanceID, "/can-submit")
}

func (cc *CaseClient) CanAttest(ctx context.Context, caseInstanceID uuid.UUID) (bool, error) {
	return cc.permission(ctx, caseInstanceID, "/can-attest")
}

func (cc *CaseClient) CanReject(ctx context.Context, caseInstanceID uuid.UUID) (bool, error) {
	return cc.permission(ctx, caseInstanceID, "/can-reject")
}

func (cc *CaseClient) permission(ctx context.Context, caseInstanceID uuid.UUID, suffix string) (bool, error) {
	var resp permissionResponse
	path := instancePath(caseInstanceID, suffix)
	found, err := cc.c.do(ctx, http.MethodGet, path, nil, &resp)
	if err := cc.c.mustExist(found, err, http.MethodGet, path); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

// NotifyTransition records the decision's new status in the case workflow
func (cc *CaseClient) NotifyTransition(ctx context.Context, caseInstanceID uuid.UUID, status models.DecisionStatus, note models.TransitionNote) error {
	path := instancePath(caseInstanceID, "/transitions")
	found, err := cc.c.do(ctx, http.MethodPost, path, transitionRequest{Status: status, Note: note}, nil)
	return cc.c.mustExist(found, err, http.MethodPost, path)
}

func (cc *CaseClient) FetchOpenTasksForCase(ctx context.Context, caseID int64) ([]models.Task, error) {
	var tasks []models.Task
	path := fmt.Sprintf("/api/cases/%d/tasks?open=true", caseID)
	if _, err := cc.c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (cc *CaseClient) AssignTask(ctx context.Context, task models.Task, actor models.Actor) error {
	path := "/api/tasks/" + url.PathEscape(task.ID) + "/assignment"
	found, err := cc.c.do(ctx, http.MethodPut, path, assignmentRequest{Ident: actor.Ident, OrgUnit: actor.OrgUnit}, nil)
	return cc.c.mustExist(found, err, http.MethodPut, path)
}
