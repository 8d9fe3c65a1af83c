package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/errors"
	"github.com/ajitpratap0/tether/pkg/logger"
)

const notFoundText = "Connection not found."

// defaultSampleChars is the sample size when the caller does not pass n.
const defaultSampleChars = 256

type connectRequest struct {
	AdapterType  string                 `json:"adapter_type"`
	Config       map[string]interface{} `json:"config"`
	ConnectionID string                 `json:"connection_id,omitempty"`
}

type connectResponse struct {
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

type sendRequest struct {
	Data     string `json:"data"`
	Encoding string `json:"encoding,omitempty"` // utf-8 or base64
}

type sendResponse struct {
	Success   bool   `json:"success"`
	BytesSent int    `json:"bytes_sent"`
	Message   string `json:"message,omitempty"`
}

type disconnectRequest struct {
	ConnectionID string `json:"connection_id"`
	Force        bool   `json:"force,omitempty"`
}

type disconnectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AdapterType == "" {
		writeError(w, http.StatusBadRequest, "adapter_type is required")
		return
	}

	cfg := s.settings.AdapterDefaultsFor(req.AdapterType, req.Config)
	ctx := context.WithValue(r.Context(), logger.AdapterKey, req.AdapterType)

	id, inst, err := s.registry.CreateOrResume(ctx, req.AdapterType, cfg, req.ConnectionID)
	if err != nil {
		logger.WithContext(ctx).Warn("connect failed", zap.Error(err))
		switch errors.TypeOf(err) {
		case errors.ErrorTypeConfig:
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.ErrorTypeConnection, errors.ErrorTypeTimeout:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		ConnectionID: id,
		Status:       string(inst.Status()),
		Message:      inst.StatusText(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeText(w, http.StatusOK, notFoundText)
		return
	}
	writeText(w, http.StatusOK, inst.StatusText())
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeText(w, http.StatusOK, notFoundText)
		return
	}

	n := defaultSampleChars
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	writeText(w, http.StatusOK, inst.StatusText()+"\n\n"+inst.Sample(n))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.registry.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Connection not found")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var data []byte
	switch req.Encoding {
	case "", "utf-8":
		data = []byte(req.Data)
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid base64 payload")
			return
		}
		data = decoded
	default:
		writeError(w, http.StatusBadRequest, "encoding must be utf-8 or base64")
		return
	}

	n, err := inst.Send(r.Context(), data)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeConnection) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		Success:   true,
		BytesSent: n,
		Message:   "Data sent successfully",
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req disconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConnectionID == "" {
		writeError(w, http.StatusBadRequest, "connection_id is required")
		return
	}

	if s.registry.Disconnect(r.Context(), req.ConnectionID, req.Force) {
		writeJSON(w, http.StatusOK, disconnectResponse{
			Success: true,
			Message: "Connection closed successfully",
		})
		return
	}
	writeJSON(w, http.StatusOK, disconnectResponse{
		Success: false,
		Message: "Connection not found",
	})
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"version":     Version,
		"connections": len(s.registry.List()),
	})
}

func (s *Server) handleDocsSearch(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil || s.docs.Len() == 0 {
		writeError(w, http.StatusServiceUnavailable, "Documentation index not loaded")
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   q,
		"results": s.docs.Search(q, limit),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
