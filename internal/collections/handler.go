package collections

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-dms/meridian/internal/platform/httpx"
	"github.com/meridian-dms/meridian/internal/shared"
)

// Handler serves collection endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches collection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pending", h.listPending)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.get)
	r.Post("/{id}/complete", h.complete)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending collections", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"collections": records})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid as_of date")
			return
		}
		asOf = parsed
	}
	buckets, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("collection aging", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"asOf": asOf.Format("2006-01-02"), "buckets": buckets})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid collection id")
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get collection", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid collection id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	rec, err := h.service.Complete(r.Context(), actor, id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrForbidden):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		case errors.Is(err, ErrCollectionNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrAlreadyComplete):
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("complete collection", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}
