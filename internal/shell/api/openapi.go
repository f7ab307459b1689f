package api

import (
	"net/http"
	"sync"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/api/openapi"
)

// openAPIGenerator builds the generator describing this API. The spec is
// generated lazily on first request and cached.
func (h *Handler) openAPIGenerator() *openapi.Generator {
	h.openapiOnce.Do(func() {
		g := openapi.NewGenerator(
			openapi.WithTitle("Defect Detection API"),
			openapi.WithVersion(h.version),
			openapi.WithDescription("Visual defect detection service for production line images"),
		)

		g.RegisterSchema("DetectResponse", DetectResponse{})
		g.RegisterSchema("BatchDetectResponse", BatchDetectResponse{})
		g.RegisterSchema("HistoryResponse", HistoryResponse{})
		g.RegisterSchema("Stats", domain.Stats{})
		g.RegisterSchema("HealthResponse", HealthResponse{})
		g.RegisterSchema("ReadyResponse", ReadyResponse{})
		g.RegisterSchema("MetricsResponse", MetricsResponse{})
		g.RegisterSchema("ErrorResponse", ErrorResponse{})

		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/health", Method: http.MethodGet,
			OperationID: "getHealth", Summary: "Liveness probe", Tag: "Service",
			ResponseSchema: "HealthResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/ready", Method: http.MethodGet,
			OperationID: "getReady", Summary: "Readiness probe", Tag: "Service",
			ResponseSchema: "ReadyResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/metrics", Method: http.MethodGet,
			OperationID: "getMetrics", Summary: "Service counters", Tag: "Service",
			ResponseSchema: "MetricsResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/api/v1/detect", Method: http.MethodPost,
			OperationID: "detect", Summary: "Analyze one image for defects", Tag: "Detection",
			RequestMime: "multipart/form-data", FileField: "file",
			ResponseSchema: "DetectResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/api/v1/batch-detect", Method: http.MethodPost,
			OperationID: "batchDetect", Summary: "Analyze multiple images in parallel", Tag: "Detection",
			RequestMime: "multipart/form-data", FileField: "files", FileRepeated: true,
			ResponseSchema: "BatchDetectResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/api/v1/stats", Method: http.MethodGet,
			OperationID: "getStats", Summary: "Inspection statistics", Tag: "History",
			ResponseSchema: "Stats",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/api/v1/history", Method: http.MethodGet,
			OperationID: "getHistory", Summary: "Recent inspections", Tag: "History",
			ResponseSchema: "HistoryResponse",
		})
		g.RegisterEndpoint(openapi.Endpoint{
			Path: "/api/v1/inspections/{id}", Method: http.MethodGet,
			OperationID: "getInspection", Summary: "Fetch one inspection", Tag: "History",
			ResponseSchema: "DetectResponse",
		})

		h.openapiGen = g
	})
	return h.openapiGen
}

// openapiState is embedded in Handler to keep generator setup out of NewHandler.
type openapiState struct {
	openapiOnce sync.Once
	openapiGen  *openapi.Generator
}
