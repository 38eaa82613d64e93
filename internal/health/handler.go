package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler returns an HTTP handler exposing /healthz backed by the service
// checker. Returns 200 with per-component detail when healthy, 503 otherwise.
func Handler(svc *ServiceHealthChecker) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		components := map[string]bool{}
		for _, dep := range svc.deps {
			components[dep.Name()] = dep.IsHealthy()
		}
		status := http.StatusOK
		state := "ok"
		if !svc.IsHealthy() {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     state,
			"components": components,
		})
	}).Methods(http.MethodGet)
	return r
}
