package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/middleware"
	"medicamp-api/internal/model"
	"medicamp-api/internal/response"
	"medicamp-api/internal/store"
)

// len guards keep single-digit fields out; datetime guards keep impossible
// calendar values out. "9:00" and "2024-13-40" both fail here.
type createAppointmentRequest struct {
	Date string `json:"date" validate:"required,len=10,datetime=2006-01-02"`
	Time string `json:"time" validate:"required,len=5,datetime=15:04"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Booked Confirmed Completed Cancelled"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p := middleware.ProfileFrom(c)
	caller := store.CallerFor(p)
	ctx := c.Request().Context()

	// friendly path; the store's partial unique index still arbitrates races
	taken, err := h.store.HasActiveAppointment(ctx, caller, req.Date, req.Time)
	if err != nil {
		return apperr.Store(err)
	}
	if taken {
		return apperr.ErrSlotTaken
	}

	a := &model.Appointment{
		UserID: p.ID,
		Date:   req.Date,
		Time:   req.Time,
		Status: model.StatusBooked,
	}
	if err := h.store.CreateAppointment(ctx, caller, a); err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.ErrSlotTaken
		}
		return apperr.Store(err)
	}

	return response.Success(c, http.StatusCreated, a, "Appointment created successfully")
}

func (h *Handler) ListOwnAppointments(c echo.Context) error {
	p := middleware.ProfileFrom(c)
	apts, err := h.store.ListAppointmentsByUser(c.Request().Context(), store.CallerFor(p))
	if err != nil {
		return apperr.Store(err)
	}
	return response.Success(c, http.StatusOK, apts, "")
}

func (h *Handler) ListAllAppointments(c echo.Context) error {
	p := middleware.ProfileFrom(c)
	apts, err := h.store.ListAllAppointments(c.Request().Context(), store.CallerFor(p))
	if err != nil {
		return apperr.Store(err)
	}
	return response.Success(c, http.StatusOK, apts, "")
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apperr.ErrValidation.WithDetails("appointment id must be an integer")
	}

	var req updateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	p := middleware.ProfileFrom(c)
	a, err := h.store.UpdateAppointmentStatus(c.Request().Context(), store.CallerFor(p), id, model.Status(req.Status))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrAppointmentNotFound
		}
		return apperr.Store(err)
	}

	return response.Success(c, http.StatusOK, a, "Appointment status updated successfully")
}
