package apiapp

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/feeds"
	"github.com/phillip-england/staffplan/internal/planner"
	"github.com/phillip-england/staffplan/internal/recommend"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/sheets"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/trigger"
	"github.com/phillip-england/staffplan/internal/workflow"
)

// location parses the {location} path variable, writing a 400 on failure.
func location(w http.ResponseWriter, r *http.Request) (roster.Location, bool) {
	loc, err := roster.ParseLocation(mux.Vars(r)["location"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return loc, true
}

func (s *server) getPlan(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	plan, err := s.svc.Plan(r.Context(), loc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) buildPlan(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req buildRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, err := s.svc.Build(r.Context(), loc, req.Start, req.HorizonWeeks)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) updateSettings(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, err := s.svc.SetIncludeDelivery(r.Context(), loc, *req.IncludeDelivery)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) addSlot(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req addSlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, id, err := s.svc.AddSlot(r.Context(), loc, mux.Vars(r)["date"], template.Slot{
		Start:     req.Start,
		End:       req.End,
		Role:      req.Role,
		Category:  template.Category(req.Category),
		Headcount: req.Headcount,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"slotId": id, "plan": plan})
}

func (s *server) updateSlot(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req updateSlotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Headcount == nil && req.Assignments == nil {
		writeError(w, http.StatusBadRequest, "headcount or assignments is required")
		return
	}
	vars := mux.Vars(r)
	plan, err := s.svc.UpdateSlot(r.Context(), loc, vars["date"], vars["slotID"], planner.SlotUpdate{
		Headcount:   req.Headcount,
		Assignments: req.Assignments,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) removeSlot(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	plan, err := s.svc.RemoveSlot(r.Context(), loc, vars["date"], vars["slotID"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) setNote(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, err := s.svc.SetNote(r.Context(), loc, mux.Vars(r)["date"], req.Note)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) copyDay(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req copyDayRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, err := s.svc.CopyDay(r.Context(), loc, req.From, mux.Vars(r)["date"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) recommendation(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Recommendation(r.Context(), loc, mux.Vars(r)["date"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) acceptRecommendation(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	plan, rec, err := s.svc.AcceptRecommendation(r.Context(), loc, mux.Vars(r)["date"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendation": rec, "plan": plan})
}

func (s *server) submitDayRequest(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req dayRequestBody
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, submitted, err := s.svc.SubmitDayRequest(r.Context(), loc, mux.Vars(r)["date"], req.Reason)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": submitted, "plan": plan})
}

func (s *server) decideRequest(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, ok := location(w, r)
		if !ok {
			return
		}
		plan, err := s.svc.DecideRequest(r.Context(), loc, mux.Vars(r)["id"], approve)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func (s *server) submitNextWeek(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	plan, err := s.svc.SubmitNextWeek(r.Context(), loc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) decideNextWeek(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	plan, err := s.svc.DecideNextWeek(r.Context(), loc, *req.Approved, req.Reviewer)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *server) ptoConflicts(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	conflicts, err := s.svc.PTOConflicts(r.Context(), loc, strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

func (s *server) triggerReport(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	report, err := s.svc.Triggers(r.Context(), loc, strings.TrimSpace(r.URL.Query().Get("anchor")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) applyProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rs, err := s.svc.ApplyProfile(r.Context(), req.Profile)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *server) setThreshold(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "condition index must be a number")
		return
	}
	var req thresholdRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rs, err := s.svc.SetThreshold(r.Context(), loc, trigger.Transition(vars["transition"]), index, *req.Value)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *server) importMetrics(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "metrics file is required")
		return
	}
	defer file.Close()

	loc, err := roster.ParseLocation(r.FormValue("location"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	imported, err := s.svc.ImportMetrics(r.Context(), file, header.Filename, loc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"daily":   len(imported.Daily),
		"hourly":  len(imported.Hourly),
		"skipped": imported.Skipped,
	})
}

func (s *server) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"feeds": s.svc.SyncStatus()})
}

func (s *server) syncFeed(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Sync(r.Context(), mux.Vars(r)["feed"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) exportPlan(w http.ResponseWriter, r *http.Request) {
	loc, ok := location(w, r)
	if !ok {
		return
	}
	buf, filename, err := s.svc.Export(r.Context(), loc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

var (
	badRequest = []error{
		planner.ErrLocationRequired,
		planner.ErrInvalidDate,
		planner.ErrInvalidMonth,
		planner.ErrInvalidSheet,
		roster.ErrUnknownLocation,
		schedule.ErrInvalidSlot,
		schedule.ErrPosition,
		workflow.ErrReasonRequired,
		trigger.ErrUnknownProfile,
		trigger.ErrUnknownTransition,
		trigger.ErrConditionIndex,
	}
	notFound = []error{
		schedule.ErrDayNotFound,
		schedule.ErrSlotNotFound,
		workflow.ErrRequestNotFound,
		planner.ErrUnknownFeed,
	}
	conflict = []error{
		workflow.ErrNoException,
		workflow.ErrRequestPending,
		workflow.ErrNotPending,
		workflow.ErrNoWeeks,
		workflow.ErrAlreadySubmitted,
		recommend.ErrAlreadyApplied,
		recommend.ErrNoRecommendation,
		feeds.ErrSyncInProgress,
		sheets.ErrNothingToExport,
	}
)

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeServiceError maps planner errors onto HTTP statuses. Unknown errors
// are logged and reported as 500.
func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	var gate *workflow.GateError
	if errors.As(err, &gate) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": gate.Error(), "gate": gate})
		return
	}
	var coverage *workflow.CoverageError
	if errors.As(err, &coverage) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": coverage.Error(), "validation": coverage.Validation})
		return
	}
	switch {
	case matches(err, badRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case matches(err, notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case matches(err, conflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
