package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/app"
	"github.com/escolab/boletim/internal/grading"
	"github.com/escolab/boletim/internal/metrics"
	"github.com/escolab/boletim/internal/report"
)

type BoletimHandler struct {
	service  *app.Service
	renderer report.Renderer
}

func NewBoletimHandler(service *app.Service) *BoletimHandler {
	return &BoletimHandler{
		service:  service,
		renderer: report.NewXLSXRenderer(),
	}
}

type closeRequest struct {
	Attendance float64 `json:"attendance"`
}

type gradeRequest struct {
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

// HandleClose finalizes one boletim row. Teacher/admin action.
func (h *BoletimHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	w = rec
	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(duration)
	}()
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	offeringID, ok := h.offeringFromPath(w, r)
	if !ok {
		return
	}
	studentID := r.PathValue("student")
	if studentID == "" {
		http.Error(w, "Invalid student id specified", http.StatusBadRequest)
		return
	}

	actor := h.service.Actor(r)
	if actor.Role == grading.RoleStudent {
		writeError(w, http.StatusForbidden, "students cannot close grades")
		return
	}
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.Boletim.AuthorizeOffering(actor, offeringID); err != nil {
		h.writeGradingError(w, err)
		return
	}

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Boletim.Close(studentID, offeringID, req.Attendance)
	if err != nil {
		h.writeGradingError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"record":       result.Record,
		"status":       result.Status,
		"status_label": result.Status.Label(),
	})
}

// HandleGradeSubmission stores the grade of one submission and runs the
// boletim sync for the affected student.
func (h *BoletimHandler) HandleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	offeringID, ok := h.offeringFromPath(w, r)
	if !ok {
		return
	}
	submissionID, err := strconv.ParseInt(r.PathValue("submission"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	actor := h.service.Actor(r)
	if actor.Role == grading.RoleStudent {
		writeError(w, http.StatusForbidden, "students cannot grade submissions")
		return
	}
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.Boletim.AuthorizeOffering(actor, offeringID); err != nil {
		h.writeGradingError(w, err)
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	submission, err := h.service.Store.GradeSubmission(submissionID, req.Grade, req.Feedback)
	if err != nil {
		logger.Error.Printf("Failed to grade submission %d: %v", submissionID, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sync, err := h.service.Boletim.SyncFromGrading(submission.StudentID, offeringID)
	if err != nil {
		logger.Error.Printf("Sync after grading failed: %v", err)
		http.Error(w, "Failed to sync grade record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"submission": submission,
		"sync":       sync,
	})
}

// HandleSync re-runs the aggregation for one (student, offering) pair
// without touching attendance.
func (h *BoletimHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	offeringID, ok := h.offeringFromPath(w, r)
	if !ok {
		return
	}
	studentID := r.PathValue("student")
	if studentID == "" {
		http.Error(w, "Invalid student id specified", http.StatusBadRequest)
		return
	}

	actor := h.service.Actor(r)
	if actor.Role == grading.RoleStudent {
		writeError(w, http.StatusForbidden, "students cannot sync grades")
		return
	}
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.service.Boletim.AuthorizeOffering(actor, offeringID); err != nil {
		h.writeGradingError(w, err)
		return
	}

	sync, err := h.service.Boletim.SyncFromGrading(studentID, offeringID)
	if err != nil {
		h.writeGradingError(w, err)
		return
	}

	writeJSON(w, sync)
}

// HandleOfferingSummary lists the persisted boletim rows of one offering.
func (h *BoletimHandler) HandleOfferingSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	offeringID, ok := h.offeringFromPath(w, r)
	if !ok {
		return
	}

	actor := h.service.Actor(r)
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.service.Boletim.ListOffering(actor, offeringID)
	if err != nil {
		h.writeGradingError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rows": records,
	})
}

// HandleStudentBoletim lists the persisted rows of one student.
func (h *BoletimHandler) HandleStudentBoletim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	studentID := r.PathValue("student")
	if studentID == "" {
		http.Error(w, "Invalid student id specified", http.StatusBadRequest)
		return
	}

	actor := h.service.Actor(r)
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.service.Boletim.ListStudent(actor, studentID)
	if err != nil {
		h.writeGradingError(w, err)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rows": records,
	})
}

// HandleStudentReport assembles the live-computed report card, as JSON or
// as an xlsx download with ?format=xlsx.
func (h *BoletimHandler) HandleStudentReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	studentID := r.PathValue("student")
	if studentID == "" {
		http.Error(w, "Invalid student id specified", http.StatusBadRequest)
		return
	}

	actor := h.service.Actor(r)
	if err := h.service.ValidateAuthAndActor(r, actor); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rows, err := h.service.Reports.StudentReportFor(actor, studentID)
	if errors.Is(err, grading.ErrPermissionDenied) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		logger.Error.Printf("Failed to assemble report for %s: %v", studentID, err)
		http.Error(w, "Failed to assemble report", http.StatusInternalServerError)
		return
	}

	format := r.URL.Query().Get("format")
	metrics.ReportsTotal.WithLabelValues(formatLabel(format)).Inc()

	if format == "xlsx" {
		studentName := r.URL.Query().Get("name")
		if studentName == "" {
			studentName = studentID
		}
		doc, err := h.renderer.Render(studentName, studentID, r.URL.Query().Get("class"), rows)
		if err != nil {
			logger.Error.Printf("Failed to render report for %s: %v", studentID, err)
			http.Error(w, "Failed to render report", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="boletim_`+studentID+`.xlsx"`)
		w.Write(doc)
		return
	}

	writeJSON(w, map[string]interface{}{
		"rows": rows,
	})
}

// statusRecorder captures the response code so the request duration
// metric carries the real status instead of assuming success.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func formatLabel(format string) string {
	if format == "xlsx" {
		return "xlsx"
	}
	return "json"
}

func (h *BoletimHandler) offeringFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	offeringID, err := strconv.ParseInt(r.PathValue("offering"), 10, 64)
	if err != nil || offeringID <= 0 {
		logger.Error.Printf("Failed to extract offering from path: %s", r.URL.Path)
		http.Error(w, "Invalid offering", http.StatusBadRequest)
		return 0, false
	}
	return offeringID, true
}

func (h *BoletimHandler) writeGradingError(w http.ResponseWriter, err error) {
	var validationErr grading.ValidationError
	var baseErr *grading.BaseIncompleteError
	var makeUpErr *grading.MakeUpRequiredError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &baseErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   baseErr.Error(),
			"missing": baseErr.Missing,
		})
	case errors.As(err, &makeUpErr):
		writeError(w, http.StatusConflict, makeUpErr.Error())
	case errors.Is(err, grading.ErrNotEnrolled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, grading.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error.Printf("ERROR: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
