package cases

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/auth"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// maxUploadSize bounds multipart case uploads (scan images)
const maxUploadSize = 32 << 20

// Handlers handles HTTP requests for medical cases
type Handlers struct {
	service interfaces.CaseService
	logger  *logger.Logger
}

// NewHandlers creates new case HTTP handlers
func NewHandlers(service interfaces.CaseService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers case routes on an authenticated subrouter
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/cases", h.ListCases).Methods("GET")
	router.HandleFunc("/cases", h.CreateCase).Methods("POST")
	router.HandleFunc("/cases/{caseID}", h.GetCase).Methods("GET")
	router.HandleFunc("/cases/{caseID}/messages", h.SendMessage).Methods("POST")
	router.HandleFunc("/cases/{caseID}/diagnosis", h.SubmitDiagnosis).Methods("POST")
	router.HandleFunc("/cases/{caseID}/read", h.MarkAsRead).Methods("PATCH")
}

// ListCases returns the cases visible to the caller
func (h *Handlers) ListCases(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	cases, err := h.service.ListCases(r.Context(), user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list cases")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cases)
}

// GetCase returns a single case by ID
func (h *Handlers) GetCase(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	mc, err := h.service.GetCase(r.Context(), user, mux.Vars(r)["caseID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mc)
}

// CreateCase accepts a multipart form with a description, optional
// modality, comma-separated tags, and an optional image file
func (h *Handlers) CreateCase(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid multipart payload")
		return
	}

	input := &types.CreateCaseInput{
		Description: r.FormValue("description"),
		Modality:    types.Modality(r.FormValue("modality")),
	}
	if tags := r.FormValue("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Failed to read image upload")
			return
		}
		input.ImageName = header.Filename
		input.ImageData = data
	}

	mc, err := h.service.CreateCase(r.Context(), user, input)
	if err != nil {
		h.logger.WithError(err).Warn("Case creation failed")
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mc)
}

// SendMessage appends a chat message to the case thread
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	var req types.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid JSON payload")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), user, mux.Vars(r)["caseID"], req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// SubmitDiagnosis records the doctor's diagnosis and completes the case
func (h *Handlers) SubmitDiagnosis(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	var req types.DiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid JSON payload")
		return
	}

	mc, err := h.service.SubmitDiagnosis(r.Context(), user, mux.Vars(r)["caseID"], req.Feedback)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mc)
}

// MarkAsRead clears the caller's unread flag on the case
func (h *Handlers) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	if err := h.service.MarkAsRead(r.Context(), user, mux.Vars(r)["caseID"]); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// errorResponse is the JSON error envelope
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &errorResponse{Code: code, Message: message})
}

// writeServiceError maps a service error to an HTTP status
func writeServiceError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Type {
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeAuthentication:
			status = http.StatusUnauthorized
		case types.ErrorTypeAuthorization:
			status = http.StatusForbidden
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		}
		writeError(w, status, appErr.Code, appErr.Message)
		return
	}

	writeError(w, http.StatusInternalServerError, types.ErrCodeInternal, err.Error())
}
