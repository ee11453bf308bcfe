package httpapi

import (
	"net/http"
	"sync"

	"github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"

	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/events"
)

// Request shapes reflected into the OpenAPI document. They mirror what the
// handlers decode.
type (
	itemPathRequest struct {
		ID string `path:"id"`
	}

	createItemRequest struct {
		Attributes map[string]any `json:"attributes"`
	}

	updateItemRequest struct {
		ID         string         `path:"id"`
		Attributes map[string]any `json:"attributes"`
	}

	listEventsRequest struct {
		Limit int    `query:"limit"`
		Type  string `query:"type"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}

	healthResponse struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
)

var (
	openapiOnce  sync.Once
	openapiBytes []byte
	openapiErr   error
)

func (h *handler) openapiDocument(w http.ResponseWriter, r *http.Request) {
	openapiOnce.Do(func() {
		openapiBytes, openapiErr = buildOpenAPIDocument()
	})
	if openapiErr != nil {
		writeError(w, http.StatusInternalServerError, openapiErr)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openapiBytes)
}

// buildOpenAPIDocument reflects the item routes into an OpenAPI 3.1 document.
// The watch stream is not described; OpenAPI has no WebSocket vocabulary.
func buildOpenAPIDocument() ([]byte, error) {
	reflector := openapi31.NewReflector()
	reflector.Spec.Info.
		WithTitle("itemgrid API").
		WithVersion("1.0.0").
		WithDescription("Generic item resource service with change events.")

	type operation struct {
		method      string
		path        string
		id          string
		summary     string
		request     interface{}
		response    interface{}
		status      int
		errStatuses []int
	}

	operations := []operation{
		{
			method:   http.MethodGet,
			path:     "/items",
			id:       "listItems",
			summary:  "List items in insertion order",
			response: []item.Item{},
			status:   http.StatusOK,
		},
		{
			method:      http.MethodPost,
			path:        "/items",
			id:          "createItem",
			summary:     "Create an item; the identifier is assigned by the server",
			request:     createItemRequest{},
			response:    item.Item{},
			status:      http.StatusCreated,
			errStatuses: []int{http.StatusBadRequest},
		},
		{
			method:      http.MethodGet,
			path:        "/items/{id}",
			id:          "getItem",
			summary:     "Fetch a single item",
			request:     itemPathRequest{},
			response:    item.Item{},
			status:      http.StatusOK,
			errStatuses: []int{http.StatusNotFound},
		},
		{
			method:      http.MethodPut,
			path:        "/items/{id}",
			id:          "updateItem",
			summary:     "Replace the attributes of an item",
			request:     updateItemRequest{},
			response:    item.Item{},
			status:      http.StatusOK,
			errStatuses: []int{http.StatusBadRequest, http.StatusNotFound},
		},
		{
			method:      http.MethodDelete,
			path:        "/items/{id}",
			id:          "deleteItem",
			summary:     "Delete an item",
			request:     itemPathRequest{},
			status:      http.StatusNoContent,
			errStatuses: []int{http.StatusNotFound},
		},
		{
			method:      http.MethodGet,
			path:        "/items/events",
			id:          "listEvents",
			summary:     "List recent change events, newest first",
			request:     listEventsRequest{},
			response:    []events.Event{},
			status:      http.StatusOK,
			errStatuses: []int{http.StatusBadRequest},
		},
		{
			method:   http.MethodGet,
			path:     "/healthz",
			id:       "health",
			summary:  "Service health and per-service lifecycle status",
			response: healthResponse{},
			status:   http.StatusOK,
		},
	}

	for _, op := range operations {
		oc, err := reflector.NewOperationContext(op.method, op.path)
		if err != nil {
			return nil, err
		}
		oc.SetID(op.id)
		oc.SetSummary(op.summary)
		oc.SetTags("items")
		if op.request != nil {
			oc.AddReqStructure(op.request)
		}
		oc.AddRespStructure(op.response, openapi.WithHTTPStatus(op.status))
		for _, errStatus := range op.errStatuses {
			oc.AddRespStructure(errorResponse{}, openapi.WithHTTPStatus(errStatus))
		}
		if err := reflector.AddOperation(oc); err != nil {
			return nil, err
		}
	}

	return reflector.Spec.MarshalJSON()
}
