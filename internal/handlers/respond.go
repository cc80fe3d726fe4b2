package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"guestbook/internal/services"
)

const flashCookieName = "flash"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps a service error to an HTTP status and a user-safe message.
// what names the missing thing for 404s, e.g. "Post".
func errorStatus(ctx context.Context, err error, what string) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, services.UserMessage(err)
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, what + " not found"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid handle or password"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "You are not allowed to change this " + strings.ToLower(what)
	case errors.Is(err, services.ErrUnavailable), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	}
	return http.StatusInternalServerError, "Something went wrong"
}

// writeError answers an API request from a service error, logging unexpected ones
func writeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	status, msg := errorStatus(r.Context(), err, what)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	} else {
		zerolog.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSONError(w, status, msg)
}

// flashMessage returns the text shown to a human for a failed page action
func flashMessage(r *http.Request, err error, what string) string {
	status, msg := errorStatus(r.Context(), err, what)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Page action failed")
	}
	return msg
}

func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the pending flash message
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// pathID reads a numeric route variable; the route pattern guarantees digits
func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render page")
	}
}
