package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jayapriya2010/aquaponics-server/internal/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Store         *store.ReadingStore
	Hub           *Hub
	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	Version       string
}

// apiError is the JSON failure envelope.
type apiError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Success: false, Message: msg})
}

func parseLimit(r *http.Request) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return store.DefaultListLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return store.DefaultListLimit
	}
	return n
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	}
	if hours > 0 {
		return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
	}
	return strconv.Itoa(minutes) + "m"
}

// createRequest uses pointer fields so a missing key is distinguishable from
// a legitimate zero value.
type createRequest struct {
	WaterLevel            *float64 `json:"waterLevel"`
	TemperatureCelsius    *float64 `json:"temperatureCelsius"`
	TemperatureFahrenheit *float64 `json:"temperatureFahrenheit"`
}

// CreateReading handles POST /api/sensor-data
func (h *Handlers) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reading, err := h.Store.Create(r.Context(), store.CreateParams{
		WaterLevel:            req.WaterLevel,
		TemperatureCelsius:    req.TemperatureCelsius,
		TemperatureFahrenheit: req.TemperatureFahrenheit,
	})
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.Logger.Error("failed to save reading", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save sensor data")
		return
	}

	if h.Hub != nil {
		h.Hub.Broadcast(*reading)
	}

	type createResponse struct {
		Success    bool           `json:"success"`
		Message    string         `json:"message"`
		LatestData *store.Reading `json:"latestData"`
	}
	writeJSON(w, http.StatusOK, createResponse{
		Success:    true,
		Message:    "sensor data saved",
		LatestData: reading,
	})
}

// ListReadings handles GET /api/sensor-data
func (h *Handlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings := h.Store.List(r.Context(), parseLimit(r))
	if readings == nil {
		readings = []store.Reading{}
	}

	type listResponse struct {
		Success bool            `json:"success"`
		Data    []store.Reading `json:"data"`
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Data: readings})
}

// LatestReading handles GET /api/sensor-data/latest
func (h *Handlers) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading := h.Store.Latest(r.Context())
	if reading == nil {
		writeError(w, http.StatusNotFound, "no sensor data found")
		return
	}

	type latestResponse struct {
		Success bool           `json:"success"`
		Data    *store.Reading `json:"data"`
	}
	writeJSON(w, http.StatusOK, latestResponse{Success: true, Data: reading})
}

// Root handles GET /
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("aquaponics-server is running\n"))
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type storageHealth struct {
		Driver string `json:"driver"`
		Live   bool   `json:"live"`
	}
	type bufferHealth struct {
		Size     int `json:"size"`
		Capacity int `json:"capacity"`
	}
	type healthResponse struct {
		Status  string        `json:"status"`
		Version string        `json:"version"`
		Uptime  string        `json:"uptime"`
		Storage storageHealth `json:"storage"`
		Buffer  bufferHealth  `json:"buffer"`
	}

	size, capacity := h.Store.BufferStatus()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: h.Version,
		Uptime:  formatUptime(time.Since(h.StartTime)),
		Storage: storageHealth{Driver: h.StorageDriver, Live: h.Store.DurableLive()},
		Buffer:  bufferHealth{Size: size, Capacity: capacity},
	})
}
