package ws

import (
	"encoding/json"
	"net/http"
)

// StatsHandler exposes current connection counts as JSON for operational
// checks. Mount it behind internal auth; per-user counts are included.
func StatsHandler(coordinator Coordinator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := coordinator.Stats()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"active_connections": stats.ActiveConnections,
			"connected_users":    stats.ConnectedUsers,
			"per_user":           stats.PerUser,
		})
	})
}
