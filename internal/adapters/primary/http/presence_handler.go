package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/atendo/realtime-gateway/internal/adapters/primary/http/middleware"
	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// PresenceHandler exposes contact presence over REST for staff tooling
// that is not connected to the gateway.
type PresenceHandler struct {
	presence ports.PresenceService
	logger   *slog.Logger
}

func NewPresenceHandler(presence ports.PresenceService, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{
		presence: presence,
		logger:   logger,
	}
}

type presenceResponse struct {
	SubjectID      string     `json:"subjectId"`
	IsOnline       bool       `json:"isOnline"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
}

// GetContactPresence handles GET /contacts/{contactId}/presence. Lookups
// are scoped to the caller's tenant.
func (h *PresenceHandler) GetContactPresence(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Token de autenticação ausente",
			"code":  "UNAUTHORIZED",
		})
		return
	}

	contactID := chi.URLParam(r, "contactId")
	if contactID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Identificador do contato é obrigatório",
			"code":  "VALIDATION_ERROR",
		})
		return
	}

	record, err := h.presence.Lookup(r.Context(), contactID)
	if err != nil {
		h.logger.Error("failed to look up contact presence",
			"request_id", mw.GetRequestID(r.Context()),
			"contato_id", contactID,
			"empresa_id", claims.EmpresaID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Erro interno do servidor",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	resp := presenceResponse{
		SubjectID: record.SubjectID,
		IsOnline:  record.Online,
	}
	if record.HasActivity() {
		resp.LastActivityAt = &record.LastActivityAt
	}

	writeJSON(w, http.StatusOK, resp)
}
