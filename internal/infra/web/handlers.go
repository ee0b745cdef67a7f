package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
)

type enrollmentCreateRequest struct {
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	TotalAmount int64  `json:"total_amount"` // 0 means list price
	CollectNow  bool   `json:"collect_now"`
}

func (s *Server) handleEnrollmentCreate(w http.ResponseWriter, r *http.Request) {
	var req enrollmentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	enr, schedule, err := s.enrollmentUC.CreateEnrollment(r.Context(), req.UserID, req.ProductID, req.TotalAmount, req.CollectNow)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Enrollment *model.Enrollment        `json:"enrollment"`
		Schedule   []*model.PaymentSchedule `json:"schedule"`
	}{enr, schedule})
}

func (s *Server) handleEnrollmentGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	enr, err := s.enrollments.FindByID(ctx, nil, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	schedule, err := s.schedules.ListByEnrollment(ctx, nil, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payments, err := s.payments.ListByEnrollment(ctx, nil, id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Enrollment *model.Enrollment        `json:"enrollment"`
		Schedule   []*model.PaymentSchedule `json:"schedule"`
		Payments   []*model.Payment         `json:"payments"`
	}{enr, schedule, payments})
}

func (s *Server) handleScheduleGenerate(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.enrollmentUC.GenerateSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Schedule []*model.PaymentSchedule `json:"schedule"`
	}{schedule})
}

func (s *Server) handleEnrollmentCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.enrollmentUC.CancelAbandoned(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnrollmentDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.enrollmentUC.DeleteEnrollment(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrphanList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	orphans, err := s.recoveryUC.ListOrphans(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Items []*model.ProviderEvent `json:"items"`
	}{orphans})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		EventID  string `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" || req.EventID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	diff, err := s.recoveryUC.Replay(r.Context(), req.Provider, req.EventID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScheduleID string `json:"schedule_id"`
		ChargeRef  string `json:"charge_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduleID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	diff, err := s.recoveryUC.MarkPaid(r.Context(), req.ScheduleID, req.ChargeRef)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnrollmentID string `json:"enrollment_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EnrollmentID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	diff, err := s.recoveryUC.RecomputeAggregates(r.Context(), req.EnrollmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// writeError maps domain sentinels onto HTTP statuses. Ambiguity and
// transition conflicts surface as 409 so operators see them rather than a
// silently coerced state.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidPaymentModel):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrAmbiguousMatch),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrScheduleExists),
		errors.Is(err, domain.ErrOrphanEvent):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error().Err(err).Msg("admin API request failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
