package api

import (
	"net/http"
	"strings"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {
	return "ok", nil
}

// ReadinessHandler reports whether every dependency passed its last check.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	status := s.health.GetHealthStatus()
	if !status.Healthy {
		failed := make([]string, 0)
		for _, component := range status.Failed() {
			failed = append(failed, string(component))
		}

		return nil, &APIError{
			Code:        Unhealthy,
			Description: strings.Join(failed, ","),
		}
	}

	return status, nil
}
