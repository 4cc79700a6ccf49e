package api

import (
	"net/http"

	"github.com/seenimoa/panelstudy/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Data      config.DataConfig      `json:"data"`
	Dashboard config.DashboardConfig `json:"dashboard"`
	API       ConfigAPI              `json:"api"`
}

// ConfigAPI is the server section of ConfigResponse.
type ConfigAPI struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
	Watch       bool     `json:"watch"`
}

// handleGetConfig returns the running configuration the dashboard needs.
// Source settings are reported through /config/keys only.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, ConfigResponse{
		Data:      s.cfg.Data,
		Dashboard: s.cfg.Dashboard,
		API: ConfigAPI{
			Addr:        s.cfg.API.Addr(),
			CORSOrigins: s.cfg.API.CORSOrigins,
			Watch:       s.cfg.API.Watch,
		},
	})
}

// handleGetConfigKeys returns the status of credential-like settings.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, config.CheckKeys(s.cfg))
}
