package gameserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type rejection struct {
	Category action.Category `json:"category"`
	Tier     int             `json:"tier"`
	Reason   string          `json:"reason"`
	Need     *int            `json:"need,omitempty"`
	Have     *int            `json:"have,omitempty"`
}

func rejectionBody(rej *scheduler.RejectedError) rejection {
	body := rejection{Category: rej.Category, Tier: rej.Tier, Reason: "unknown"}
	switch {
	case errors.Is(rej, scheduler.ErrAlreadyRunning):
		body.Reason = "already_running"
	case errors.Is(rej, scheduler.ErrInsufficientEnergy):
		body.Reason = "insufficient_energy"
		need, have := rej.Need, rej.Have
		body.Need, body.Have = &need, &have
	}
	return body
}

type started struct {
	ActionID uuid.UUID       `json:"action_id"`
	Category action.Category `json:"category"`
	Tier     int             `json:"tier"`
	Name     string          `json:"name"`
	EndsAt   time.Time       `json:"ends_at"`
}

func startedBody(pa scheduler.PendingAction) started {
	return started{
		ActionID: pa.ID,
		Category: pa.Definition.Category,
		Tier:     pa.Definition.Tier,
		Name:     pa.Definition.Name,
		EndsAt:   pa.End,
	}
}

type tierBody struct {
	Tier       int    `json:"tier"`
	Name       string `json:"name"`
	Energy     int    `json:"energy"`
	DurationMs int64  `json:"duration_ms"`
	Experience int    `json:"experience"`
	Item       string `json:"item,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

func tierBodies(defs []action.Definition) []tierBody {
	out := make([]tierBody, 0, len(defs))
	for _, d := range defs {
		tb := tierBody{
			Tier:       d.Tier,
			Name:       d.Name,
			Energy:     d.EnergyCost,
			DurationMs: d.Duration.Milliseconds(),
			Experience: d.ExperienceReward,
		}
		if d.HasYield() {
			tb.Item = d.Yield.Item.Name
			tb.Quantity = d.Yield.Quantity
		}
		out = append(out, tb)
	}
	return out
}

// respondJSON writes payload as JSON with status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorBody{Error: message})
}
