package api

import (
	_ "embed"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML []byte

// handleDashboard serves the embedded monitoring dashboard. The page is
// static HTML that polls /api/v1/stats and /api/v1/history from the browser.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dashboardHTML); err != nil {
		h.logger.Error("failed to write dashboard", "error", err)
	}
}
