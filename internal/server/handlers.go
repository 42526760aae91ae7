package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/mathocr/internal/pipeline"
)

// Messages returned in {"detail": ...} bodies.
const (
	detailInvalidImage = "No se pudo decodificar la imagen"
	detailNoFile       = "No se recibió ningún archivo"
	detailBadForm      = "Formulario inválido"
	detailTooLarge     = "Archivo demasiado grande"
	detailTimeout      = "Tiempo de detección agotado"
	detailCanceled     = "Solicitud cancelada"
	detailFailed       = "Error al procesar la imagen"
	detailMethod       = "Método no permitido"
)

// uploadFields are the multipart field names accepted for the image.
var uploadFields = []string{"file", "image"}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, detailMethod)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
		Engine:  s.cfg.EngineName,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// detectHandler runs the pipeline on a multipart upload.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, detailMethod)
		return
	}

	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, detailTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, detailBadForm)
		return
	}

	file, header, err := formFile(r, uploadFields...)
	if err != nil {
		writeError(w, http.StatusBadRequest, detailNoFile)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, detailNoFile)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	ctx, cancel := s.runContext(r.Context())
	defer cancel()

	start := time.Now()
	res, err := s.proc.ProcessBytes(ctx, data)
	pipeline.Observe(pipeline.SourceHTTP, err)
	if err != nil {
		status, detail := errorStatus(err)
		slog.Info("Detection request failed",
			"filename", header.Filename,
			"status", status,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		writeError(w, status, detail)
		return
	}

	slog.Info("Detection request completed",
		"filename", header.Filename,
		"expression", res.Expression,
		"result", res.Value.String(),
		"duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, res)
}

// formFile returns the first present upload among fields.
func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, f := range fields {
		file, header, err := r.FormFile(f)
		if err == nil {
			return file, header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, err
		}
	}
	return nil, nil, http.ErrMissingFile
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

// errorStatus maps a pipeline error to an HTTP status and detail. Input
// errors and detector timeouts are client errors.
func errorStatus(err error) (int, string) {
	switch pipeline.Status(err) {
	case pipeline.StatusInvalidImage:
		return http.StatusBadRequest, detailInvalidImage
	case pipeline.StatusTimeout:
		return http.StatusBadRequest, detailTimeout
	case pipeline.StatusCanceled:
		return http.StatusBadRequest, detailCanceled
	default:
		return http.StatusInternalServerError, detailFailed
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
