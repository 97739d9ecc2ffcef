package allocations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-dms/meridian/internal/platform/httpx"
)

// Handler serves allocation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes attaches allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/availability/{driverID}", h.availability)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list allocations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allocations": allocs})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid allocation id")
		return
	}
	alloc, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAllocationNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get allocation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alloc)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAllocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	alloc, err := h.service.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmptyAllocation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create allocation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, alloc)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid driver id")
		return
	}
	avail, err := h.service.AvailableForDriver(r.Context(), driverID)
	if err != nil {
		h.logger.Error("driver availability", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"driverId": driverID, "available": avail})
}
