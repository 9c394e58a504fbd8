package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
)

const (
	adminUser     = "admin"
	maxBankUpload = 10 << 20
)

// HashAdminPassword returns a bcrypt hash for password. A value that is
// already a bcrypt hash is returned unchanged.
func HashAdminPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// requireAdmin is middleware that checks HTTP basic credentials against the
// admin password hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != adminUser || len(h.config.AdminPasswordHash) == 0 ||
			bcrypt.CompareHashAndPassword(h.config.AdminPasswordHash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="assessor"`)
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleUploadBank replaces the bank for the subject in the URL. The body is
// a YAML or JSON bank file; the URL subject overrides the one in the file.
func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(chi.URLParam(r, "subject"))
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBankUpload+1))
	if err != nil || len(data) > maxBankUpload || subject == "" {
		writeMessage(w, r, http.StatusBadRequest, "bad_request", "BadRequest")
		return
	}

	parsed, err := bank.Parse(data, subject)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "invalid_bank",
			Message: i18n.Td(r.Context(), "InvalidBank", map[string]any{"Error": err.Error()}),
		})
		return
	}
	b := bank.New(subject, parsed.Questions())
	bank.LogRangeMismatches(slog.Default(), b)

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])
	if h.store != nil {
		if err := h.store.ReplaceBank(subject, hash, b.Questions()); err != nil {
			slog.Error("failed to store bank", "subject", subject, "error", err)
			writeMessage(w, r, http.StatusInternalServerError, "internal", "InternalError")
			return
		}
	}
	h.registry.Register(subject, b)

	slog.Info("uploaded bank via admin", "subject", subject, "questions", b.Len())
	writeJSON(w, http.StatusOK, model.BankResult{
		Subject:     subject,
		SourceHash:  hash,
		QuestionsBy: b.Counts(),
	})
}

// handleDeleteBank removes the bank for the subject in the URL from the
// registry and the database. Assessments already running keep their bank.
// The default subject's bank cannot be removed.
func (h *Handler) handleDeleteBank(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(chi.URLParam(r, "subject"))
	removed, err := h.registry.Unregister(subject)
	if errors.Is(err, bank.ErrDefaultBank) {
		writeMessage(w, r, http.StatusConflict, "default_bank", "DefaultBank")
		return
	}
	if !removed {
		writeMessage(w, r, http.StatusNotFound, "unknown_bank", "UnknownBank")
		return
	}
	if h.store != nil {
		if err := h.store.DeleteBank(subject); err != nil {
			slog.Error("failed to delete bank", "subject", subject, "error", err)
			writeMessage(w, r, http.StatusInternalServerError, "internal", "InternalError")
			return
		}
	}
	slog.Info("deleted bank via admin", "subject", subject)
	w.WriteHeader(http.StatusNoContent)
}
