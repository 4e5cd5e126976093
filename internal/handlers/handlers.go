package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/hub"
	"github.com/Brownie44l1/fer-demo/internal/imagesource"
	"github.com/Brownie44l1/fer-demo/internal/presenter"
	"github.com/Brownie44l1/fer-demo/internal/session"
)

const (
	previewSide = 480
	// multipart framing allowance on top of the file size limit
	formOverhead = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	session   *session.Session
	hub       *hub.Hub
	maxUpload int64
	log       *logrus.Logger
}

func NewHandler(s *session.Session, h *hub.Hub, maxUpload int64, log *logrus.Logger) *Handler {
	return &Handler{
		session:   s,
		hub:       h,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", EnableCORS(h.Index))
	mux.HandleFunc("/health", EnableCORS(h.Health))
	mux.HandleFunc("/upload", EnableCORS(h.Upload))
	mux.HandleFunc("/upload/clear", EnableCORS(h.Clear))
	mux.HandleFunc("/detect", EnableCORS(h.Detect))
	mux.HandleFunc("/preview", EnableCORS(h.Preview))
	mux.HandleFunc("/api/state", EnableCORS(h.State))
	mux.HandleFunc("/ws", h.WS)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view := presenter.NewView(h.session.Snapshot(), h.session.Labels())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := presenter.RenderPage(w, view); err != nil {
		entryFrom(r, h.log).WithField("error", err.Error()).Error("Failed to render page")
	}
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log := entryFrom(r, h.log)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Image file is too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		h.session.Clear()
		h.respond(w, r, http.StatusOK)
		return
	}
	if err != nil {
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	log.WithFields(logrus.Fields{
		"image": header.Filename,
		"size":  humanize.Bytes(uint64(header.Size)),
	}).Info("Received file")

	err = h.session.ReadUpload(file, header.Filename, header.Header.Get("Content-Type"))
	h.respond(w, r, uploadStatus(err))
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.session.Clear()
	h.respond(w, r, http.StatusOK)
}

func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, err := h.session.Detect(r.Context())
	h.respond(w, r, detectStatus(err))
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img := h.session.Image()
	if img == nil {
		http.Error(w, "No image uploaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imagesource.WritePreview(w, img.Image, previewSide); err != nil {
		entryFrom(r, h.log).WithField("error", err.Error()).Error("Failed to write preview")
	}
}

// WS streams a snapshot after every session change. The current snapshot is
// written before the connection joins the hub so the hub is its only writer
// afterwards.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	log := entryFrom(r, h.log)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("error", err.Error()).Warn("WebSocket upgrade failed")
		return
	}

	if err := conn.WriteJSON(h.session.Snapshot()); err != nil {
		conn.Close()
		return
	}
	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("error", err.Error()).Debug("Viewer disconnected with error")
			}
			return
		}
	}
}

// respond redirects browsers back to the page and gives API clients the
// snapshot with status.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int) {
	if wantsJSON(r) {
		writeJSON(w, status, h.session.Snapshot())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func uploadStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, imagesource.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imagesource.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusUnprocessableEntity
	}
}

func detectStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrModelNotReady),
		errors.Is(err, session.ErrImageNotUploaded),
		errors.Is(err, session.ErrDetectionInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
