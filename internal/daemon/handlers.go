package daemon

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"phototag/internal/api"
	"phototag/internal/ingest"
	"phototag/internal/logging"
	"phototag/internal/queue"
	"phototag/internal/services"
)

const multipartMemory = 32 << 20

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Server is up and running!"})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()
	if strings.TrimSpace(header.Filename) == "" {
		s.writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !ingest.AllowedExtension(header.Filename) {
		s.writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Unable to read file")
		return
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "No selected file")
		return
	}

	photo, err := s.daemon.pipeline.Accept(r.Context(), ingest.Upload{
		Data:        data,
		Filename:    header.Filename,
		CaptureDate: r.FormValue("capture_date"),
	})
	switch {
	case errors.Is(err, services.ErrInvalidFormat):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.WithContext(r.Context(), s.logger).Error("upload failed",
			logging.String("filename", header.Filename),
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_failed"),
		)
		s.writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	s.writeJSON(w, http.StatusCreated, api.UploadResponse{
		Message:   "File uploaded successfully!",
		Filename:  photo.Filename,
		DateTaken: photo.CaptureDate,
		ID:        photo.ID,
	})
}

func (s *apiServer) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter queue.Filter
	if date := strings.TrimSpace(query.Get("date")); date != "" {
		parsed, err := ingest.ParseCaptureDate(date)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		filter.CaptureDate = parsed
	}
	for _, tag := range query["tag"] {
		if strings.TrimSpace(tag) != "" {
			filter.Tags = append(filter.Tags, tag)
		}
	}
	for _, value := range query["state"] {
		state, err := queue.ParseState(value)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.States = append(filter.States, state)
	}
	if value := query.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	photos, err := s.photos.Find(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PhotoListResponse{Photos: photos})
}

func (s *apiServer) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid photo id")
		return
	}
	photo, err := s.photos.Describe(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, photo)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.photos.Entries(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Entries: entries})
}

func (s *apiServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.photos.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Store:        status.StoreDriver,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "photo not found")
	case errors.Is(err, services.ErrStoreUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		s.logger.Error("store query failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
