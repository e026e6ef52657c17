package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ArthurPoncin/google-ai-gen/internal/generator"
	"github.com/ArthurPoncin/google-ai-gen/internal/service"
	"github.com/ArthurPoncin/google-ai-gen/pkg/apierror"
	"github.com/ArthurPoncin/google-ai-gen/pkg/response"

	"github.com/go-chi/chi/v5"
)

// GameHandler exposes the game state surface and its intents over HTTP.
type GameHandler struct {
	game        *service.GameService
	leaderboard *service.LeaderboardService
}

// NewGameHandler creates a new game handler.
func NewGameHandler(game *service.GameService, leaderboard *service.LeaderboardService) *GameHandler {
	return &GameHandler{
		game:        game,
		leaderboard: leaderboard,
	}
}

// GetState handles GET /api/v1/game/state
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.game.State())
}

// Generate handles POST /api/v1/game/generate
func (h *GameHandler) Generate(w http.ResponseWriter, r *http.Request) {
	item, err := h.game.Generate(r.Context())
	if err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	h.leaderboard.Invalidate(r.Context())
	response.Created(w, map[string]interface{}{
		"item":  item,
		"state": h.game.State(),
	})
}

// Resell handles POST /api/v1/game/items/{id}/resell
func (h *GameHandler) Resell(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	if err := h.game.Resell(r.Context(), itemID); err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	h.leaderboard.Invalidate(r.Context())
	response.OK(w, h.game.State())
}

// Buy handles POST /api/v1/game/items/{id}/buy
func (h *GameHandler) Buy(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	if err := h.game.Buy(r.Context(), itemID); err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	h.leaderboard.Invalidate(r.Context())
	response.OK(w, h.game.State())
}

// ToggleFavorite handles POST /api/v1/game/items/{id}/favorite
func (h *GameHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	if err := h.game.ToggleFavorite(r.Context(), itemID); err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	response.OK(w, h.game.State())
}

// ClaimBonus handles POST /api/v1/game/bonus/claim
func (h *GameHandler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	amount, err := h.game.ClaimDailyBonus(r.Context())
	if err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	response.OK(w, map[string]interface{}{
		"amount": amount,
		"state":  h.game.State(),
	})
}

// ToggleTheme handles POST /api/v1/game/settings/theme
func (h *GameHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	if err := h.game.ToggleTheme(r.Context()); err != nil {
		response.Error(w, mapGameError(err))
		return
	}
	response.OK(w, h.game.State())
}

// ToggleMute handles POST /api/v1/game/settings/mute
func (h *GameHandler) ToggleMute(w http.ResponseWriter, r *http.Request) {
	if err := h.game.ToggleMute(r.Context()); err != nil {
		response.Error(w, mapGameError(err))
		return
	}
	response.OK(w, h.game.State())
}

// SetName handles PUT /api/v1/game/settings/name
func (h *GameHandler) SetName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.Error(w, apierror.BadRequest("name is required"))
		return
	}

	if err := h.game.SetPlayerName(r.Context(), req.Name); err != nil {
		response.Error(w, mapGameError(err))
		return
	}

	h.leaderboard.Invalidate(r.Context())
	response.OK(w, h.game.State())
}

// GetLeaderboard handles GET /api/v1/game/leaderboard
func (h *GameHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Entries(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to build leaderboard"))
		return
	}
	response.OK(w, entries)
}

// mapGameError translates domain and generator failures into API errors.
func mapGameError(err error) error {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		return apierror.PaymentRequired(err.Error())
	case errors.Is(err, service.ErrItemNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, service.ErrNotOwned), errors.Is(err, service.ErrNotResold),
		errors.Is(err, service.ErrBonusUnavailable):
		return apierror.Conflict(err.Error())
	case errors.Is(err, generator.ErrTimeout):
		return apierror.GatewayTimeout(err.Error())
	case errors.Is(err, generator.ErrUnreachable), errors.Is(err, generator.ErrRejected),
		errors.Is(err, generator.ErrMalformedResponse):
		return apierror.BadGateway(err.Error())
	default:
		return apierror.InternalError(err.Error())
	}
}
