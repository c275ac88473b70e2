package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/chorbazzar/internal/session"
)

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves the caller's session from SessionHeader. A missing or
// malformed id starts a new session rather than failing the request.
func (h *Handler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		w.Header().Set(SessionHeader, id)

		ctx := zctx.With(r.Context(), zap.String("session_id", id))
		s, err := h.sessions.Get(ctx, id)
		if err != nil {
			zctx.From(ctx).Error("Open session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		next(w, r.WithContext(ctx), s)
	}
}

func sessionID(r *http.Request) string {
	if raw := r.Header.Get(SessionHeader); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}
