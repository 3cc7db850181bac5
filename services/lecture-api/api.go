package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// maxBodyBytes: jedna lectura má pár desítek bajtů, 1 MiB je víc než dost.
const maxBodyBytes = 1 << 20

// LectureLister je čtecí strana Store, kterou API potřebuje.
type LectureLister interface {
	List(ctx context.Context, page int) ([]Record, error)
	PageSize() int
}

// Publisher je publikační strana Bridge.
type Publisher interface {
	Publish(rec Record) error
	Channel() string
}

// LatestReader čte poslední hodnotu zařízení (Valkey cache).
type LatestReader interface {
	Get(ctx context.Context, deviceID int64) (Record, error)
}

// APIHandler sdružuje metody pro obsluhu HTTP požadavků.
// Čtení jde přímo do Store, zápis (POST) jen přes MQTT publish.
type APIHandler struct {
	store  LectureLister
	pub    Publisher
	latest LatestReader
	logger *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru.
func NewAPIHandler(store LectureLister, pub Publisher, logger *slog.Logger) *APIHandler {
	return &APIHandler{store: store, pub: pub, logger: logger}
}

// SetLatestReader zapne endpoint /lectures/latest/{device_id}.
func (h *APIHandler) SetLatestReader(l LatestReader) {
	h.latest = l
}

// statusResponse je odpověď {"status": 200} (stav služby i potvrzení publish).
type statusResponse struct {
	Status int `json:"status"`
}

type channelResponse struct {
	Channel string `json:"channel"`
}

type lecturesPage struct {
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Lectures []Record `json:"lectures"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// RegisterRoutes mapuje URL cesty na konkrétní Go funkce.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// {$} = přesně "/", ne prefix všeho
	mux.HandleFunc("GET /{$}", h.handleStatus)
	mux.HandleFunc("GET /status", h.handleStatus)

	mux.HandleFunc("GET /mqtt-channel", h.handleChannel)
	mux.HandleFunc("GET /channel", h.handleChannel)

	mux.HandleFunc("GET /lectures", h.handleListLectures)
	mux.HandleFunc("POST /lectures", h.handleCreateLecture)

	if h.latest != nil {
		mux.HandleFunc("GET /lectures/latest/{device_id}", h.handleLatest)
	}
}

func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

func (h *APIHandler) handleChannel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, channelResponse{Channel: h.pub.Channel()})
}

// handleListLectures: GET /lectures?page=0
func (h *APIHandler) handleListLectures(w http.ResponseWriter, r *http.Request) {
	page := 0
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "parametr page musí být celé číslo", "page")
			return
		}
		page = p
	}

	records, err := h.store.List(r.Context(), page)
	if errors.Is(err, ErrInvalidArgument) {
		h.writeError(w, http.StatusBadRequest, err.Error(), "page")
		return
	}
	if err != nil {
		h.logger.Error("Chyba při načítání lectur", "page", page, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Interní chyba serveru", "")
		return
	}

	h.writeJSON(w, http.StatusOK, lecturesPage{
		Page:     page,
		PageSize: h.store.PageSize(),
		Lectures: records,
	})
}

// handleCreateLecture: POST /lectures
// Záznam se NEUKLÁDÁ přímo. Jen se publikuje do MQTT a do Store se dostane,
// až se vrátí přes odběr kanálu.
func (h *APIHandler) handleCreateLecture(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "tělo požadavku je příliš velké", "")
			return
		}
		h.writeError(w, http.StatusBadRequest, "nelze přečíst tělo požadavku", "")
		return
	}

	rec, err := ParseRecord(body)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeError(w, http.StatusUnprocessableEntity, verr.Error(), verr.Field)
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.pub.Publish(rec); err != nil {
		h.logger.Error("Lecturu nelze publikovat", "lecture", rec, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, err.Error(), "")
		return
	}

	h.writeJSON(w, http.StatusOK, statusResponse{Status: http.StatusOK})
}

// handleLatest: GET /lectures/latest/{device_id}
func (h *APIHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("device_id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "device_id musí být celé číslo", "device_id")
		return
	}

	rec, err := h.latest.Get(r.Context(), id)
	if errors.Is(err, ErrNoLatest) {
		h.writeError(w, http.StatusNotFound, err.Error(), "")
		return
	}
	if err != nil {
		h.logger.Error("Chyba při čtení poslední lectury", "device_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Interní chyba serveru", "")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, msg, field string) {
	h.writeJSON(w, status, errorResponse{Error: msg, Field: field})
}

// CorsMiddleware přidává CORS hlavičky, aby API šlo volat z dashboardu na jiné doméně.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Preflight request, odpovíme OK a končíme.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
