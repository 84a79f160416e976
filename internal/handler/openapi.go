package handler

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/openapi"
)

// OpenAPIHandler serves the API description document.
type OpenAPIHandler struct {
	doc *openapi3.T
}

// NewOpenAPIHandler generates the document once up front; the route table is
// fixed for the life of the process.
func NewOpenAPIHandler(baseURL, version string) *OpenAPIHandler {
	return &OpenAPIHandler{doc: openapi.GenerateSpec(baseURL, version)}
}

// ServeSpec returns the OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.doc)
}
