package stubapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hana/fieldmate/internal/remote"
	userentity "github.com/hana/fieldmate/internal/user/entity"
)

// Handler exposes the join, message and member endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req remote.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid join payload", "err", err)
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	sess, err := h.svc.Join(r.Context(), req.Name, req.PhoneNumber, req.Password, req.PasswordCheck)
	if err != nil {
		h.fail(w, "join", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, remote.JoinResponse{
		MemberID:     sess.MemberID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req remote.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if err := h.svc.SendMessage(r.Context(), req.PhoneNumber, string(req.MessageType)); err != nil {
		h.fail(w, "send message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyMessage(w http.ResponseWriter, r *http.Request) {
	var req remote.VerifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if err := h.svc.VerifyMessage(r.Context(), req.PhoneNumber, req.AuthenticationNumber, string(req.MessageType)); err != nil {
		h.fail(w, "verify message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Member(r.Context(), bearerToken(r))
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	h.writeJSON(w, http.StatusOK, userentity.UserInfo{
		CompanyID:         m.CompanyID,
		MemberID:          m.ID,
		CompanyName:       m.CompanyName,
		JoinCompanyStatus: m.JoinCompanyStatus,
		Name:              m.Name,
		Role:              m.Role,
	})
}

func (h *Handler) Quit(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Quit(r.Context(), bearerToken(r)); err != nil {
		h.fail(w, "quit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// fail maps service errors to status codes. Anything wrong with the caller's
// credential is a 401, which clients treat as an expired session.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Debugw(op+" failed", "err", err)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "token expired")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMemberNotFound):
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
	case errors.Is(err, ErrPhoneTaken):
		h.writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPhoneNotVerified),
		errors.Is(err, ErrCodeNotRequested), errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrCodeMismatch):
		h.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		h.logger.Warnw(op+" failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "server_error", op+" failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, remote.ErrorBody{Error: code, Message: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
