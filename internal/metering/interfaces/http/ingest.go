package meteringhttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"home-energy/internal/auth"
	"home-energy/internal/metering/application"
	metering "home-energy/internal/metering/domain"
)

const maxIngestBody = 1 << 20

// IngestHandler handles POST /ingest/readings.
type IngestHandler struct {
	service *application.IngestService
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *application.IngestService, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("readings ingest: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

type ingestRequest struct {
	DeviceID string             `json:"device_id"`
	Items    []metering.RawItem `json:"items"`
}

// ServeHTTP stores the posted items.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		h.logger.Printf("readings ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(body) > maxIngestBody {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var req ingestRequest
	if err := decoder.Decode(&req); err != nil {
		h.logger.Printf("readings ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if !auth.DeviceMatches(r.Context(), req.DeviceID) {
		h.logger.Printf("readings ingest: signed by %s for device=%s", auth.DeviceFromContext(r.Context()), req.DeviceID)
		http.Error(w, "device mismatch", http.StatusForbidden)
		return
	}

	if err := h.service.Ingest(r.Context(), req.DeviceID, req.Items); err != nil {
		if errors.Is(err, metering.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"inserted": len(req.Items)})
}
