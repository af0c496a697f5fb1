package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/lehigh-university-libraries/bookcovers/internal/models"
)

const maxRequestBytes = 64 << 10

// HandleResolve resolves the cover for a BookQuery body.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var query models.BookQuery
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&query); err != nil {
		h.writeError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(query); err != nil {
		h.writeError(w, r, validationMessage(err), http.StatusBadRequest)
		return
	}

	d := h.resolver.ResolveCoverImage(r.Context(), query)
	h.logger.Info("Cover resolved",
		"request_id", GetRequestID(r.Context()),
		"id", query.ID,
		"kind", d.Kind,
		"tier", d.Tier,
		"source", d.Source)
	h.writeJSON(w, r, http.StatusOK, d)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
