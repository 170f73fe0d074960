package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"ragalert/internal/domain"
	"ragalert/internal/usecase"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrReportBuild):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNoDocuments):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestIDFrom(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is empty")
		}
		return domain.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": len(s.svc.Store.DocumentNames()),
		"backend":   s.svc.Backend(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Info())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleBackend(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": s.svc.Store.DocumentNames()})
}

type ingestResponse struct {
	Success bool `json:"success"`
	*domain.IngestResult
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Rebuild(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Success: true, IngestResult: res})
}

type queryRequest struct {
	Text         string   `json:"text"`
	DocumentName string   `json:"document_name,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Query.Query(r.Context(), domain.Query{
		Text:         req.Text,
		DocumentName: req.DocumentName,
		Temperature:  req.Temperature,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req usecase.MessageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ok, err := s.svc.Alerts.Send(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

// reportRequest accepts the transcript either bare or wrapped in a
// "conversation" object. The wrapped form wins when both are present.
type reportRequest struct {
	Messages     []domain.Message   `json:"messages"`
	Conversation *domain.Transcript `json:"conversation,omitempty"`
}

func (req reportRequest) transcript() domain.Transcript {
	if req.Conversation != nil {
		return *req.Conversation
	}
	return domain.Transcript{Messages: req.Messages}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.svc.Reports.Generate(r.Context(), req.transcript())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(rep.Data)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	incidents, err := s.svc.Alerts.Incidents(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}
