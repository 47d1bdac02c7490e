package integration

import (
	"context"
	"net/http"
	"vedtak/internal/config"
	"vedtak/internal/models"
)

// EventClient posts domain events to the event gateway
type EventClient struct {
	c *client
}

// NewEventClient creates an event publisher. httpClient may be nil.
func NewEventClient(endpoint config.ServiceEndpoint, token string, httpClient *http.Client) *EventClient {
	return &EventClient{c: newClient("events", endpoint, token, httpClient)}
}

func (ec *EventClient) Publish(ctx context.Context, event models.DecisionEvent) error {
	const path = "/api/decision-events"
	found, err := ec.c.do(ctx, http.MethodPost, path, event, nil)
	return ec.c.mustExist(found, err, http.MethodPost, path)
}

// CoordinationClient asks the pension coordination service to coordinate a decision
type CoordinationClient struct {
	c *client
}

// NewCoordinationClient creates a coordination client. httpClient may be nil.
func NewCoordinationClient(endpoint config.ServiceEndpoint, token string, httpClient *http.Client) *CoordinationClient {
	return &CoordinationClient{c: newClient("coordination", endpoint, token, httpClient)}
}

func (cc *CoordinationClient) RequestCoordination(ctx context.Context, decision models.Decision) (models.CoordinationResponse, error) {
	const path = "/api/coordination-requests"
	var resp models.CoordinationResponse
	found, err := cc.c.do(ctx, http.MethodPost, path, decision, &resp)
	if err := cc.c.mustExist(found, err, http.MethodPost, path); err != nil {
		return models.CoordinationResponse{}, err
	}
	return resp, nil
}
