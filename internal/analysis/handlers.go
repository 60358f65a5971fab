package analysis

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/auth"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// maxUploadSize bounds multipart analysis uploads
const maxUploadSize = 32 << 20

// Handlers handles HTTP requests for AI analysis
type Handlers struct {
	service interfaces.AnalysisService
	logger  *logger.Logger
}

// NewHandlers creates new analysis HTTP handlers
func NewHandlers(service interfaces.AnalysisService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers analysis routes on an authenticated subrouter
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analysis/multimodal", h.Multimodal).Methods("POST")
	router.HandleFunc("/analysis/chat", h.Chat).Methods("POST")
}

// Multimodal accepts an image upload plus an optional gene data file
// and returns a structured analysis report
func (h *Handlers) Multimodal(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid multipart payload")
		return
	}

	imageName, imageData, err := formFile(r, "image_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "image_file is required")
		return
	}

	geneName, geneData, _ := formFile(r, "gene_file")

	report, err := h.service.AnalyzeMultimodal(r.Context(), user.ID, imageName, imageData, geneName, geneData)
	if err != nil {
		h.logger.WithError(err).Error("Multimodal analysis failed")
		writeError(w, http.StatusInternalServerError, types.ErrCodeInternal, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Chat relays an assistant conversation to the model
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, types.ErrCodeUnauthorized, "Not authenticated")
		return
	}

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "Invalid JSON payload")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, types.ErrCodeInvalidInput, "messages must not be empty")
		return
	}

	content, err := h.service.Chat(r.Context(), &req)
	if err != nil {
		h.logger.WithError(err).Error("Chat completion failed")
		writeError(w, http.StatusInternalServerError, types.ErrCodeInternal, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// formFile reads a named multipart file into memory
func formFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
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
