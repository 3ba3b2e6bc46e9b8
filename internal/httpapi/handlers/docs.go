package handlers

import (
	"net/http"

	"github.com/swaggo/swag/v2"

	"typstapi/docs"
	"typstapi/internal/httpkit"
)

// OpenAPIPath is where the OpenAPI document is served.
const OpenAPIPath = "/api-docs/openapi.json"

// OpenAPI serves the registered OpenAPI document.
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		h.log.FromContext(r.Context()).Error("openapi document unavailable", "error", err.Error())
		httpkit.WriteErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

const scalarPage = `<!doctype html>
<html>
  <head>
    <title>Typst Compile API</title>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
  </head>
  <body>
    <script id="api-reference" data-url="` + OpenAPIPath + `"></script>
    <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
  </body>
</html>
`

// Scalar serves an interactive API reference for the OpenAPI document.
func (h *Handler) Scalar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(scalarPage))
}
