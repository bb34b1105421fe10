package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-presence/internal/tracker"
)

// groupSummary is the list-view shape of one tracker group.
type groupSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Members int    `json:"members"`
}

// groupDetail is the full read-out of one tracker group: its
// configuration surface plus live member diagnostics.
type groupDetail struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	RequireMovement bool                       `json:"require_movement"`
	DrivingSpeed    *float64                   `json:"driving_speed,omitempty"`
	TimeAs          string                     `json:"time_as"`
	Members         []tracker.MemberDiagnostic `json:"members"`
	State           tracker.TrackerState       `json:"state"`
}

// handleListGroups returns a summary of every configured group.
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	out := make([]groupSummary, 0, len(s.groups))
	for i := range s.groups {
		g := &s.groups[i]
		summary := groupSummary{
			ID:      g.Config.ID,
			Name:    g.Config.Name,
			Members: len(g.Config.Members),
		}
		if g.Tracker != nil {
			summary.State = g.Tracker.Current().State
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

// handleGetGroup returns one group's configuration and member diagnostics.
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := s.groupIndex[chi.URLParam(r, "id")]
	if !ok {
		writeNotFound(w, "group not found")
		return
	}

	detail := groupDetail{
		ID:              g.Config.ID,
		Name:            g.Config.Name,
		RequireMovement: g.Config.RequireMovement != nil && *g.Config.RequireMovement,
		DrivingSpeed:    g.Config.DrivingSpeed,
		TimeAs:          g.Config.TimeAs,
	}
	if g.Scanner != nil {
		detail.Members = g.Scanner.Diagnostics()
	}
	if g.Tracker != nil {
		detail.State = g.Tracker.Current()
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleGetGroupState returns just the group's current composite state.
func (s *Server) handleGetGroupState(w http.ResponseWriter, r *http.Request) {
	g, ok := s.groupIndex[chi.URLParam(r, "id")]
	if !ok {
		writeNotFound(w, "group not found")
		return
	}
	if g.Tracker == nil {
		writeInternalError(w, "group has no tracker attached")
		return
	}
	writeJSON(w, http.StatusOK, g.Tracker.Current())
}

// handleListZones returns every zone in the registry.
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"zones": s.zones.All()})
}
