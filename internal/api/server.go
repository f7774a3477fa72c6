// Package api serves recognition over HTTP.
package api

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/ocrstack/internal/recognizer"
	"github.com/samcharles93/ocrstack/internal/version"
)

// Recognizer is the engine surface the server needs.
type Recognizer interface {
	Recognize(ctx context.Context, images []image.Image) ([]recognizer.Result, error)
	Info() recognizer.Info
}

// DefaultMaxUpload bounds the request body of POST /v1/recognize.
const DefaultMaxUpload = 32 << 20

type Server struct {
	rec       Recognizer
	maxUpload int64
	maxImages int
	clock     func() time.Time
	newID     func() string
}

type Option func(*Server)

// WithMaxUpload sets the request body limit in bytes.
func WithMaxUpload(n int64) Option { return func(s *Server) { s.maxUpload = n } }

// WithMaxImages limits how many images one request may carry.
func WithMaxImages(n int) Option { return func(s *Server) { s.maxImages = n } }

func NewServer(rec Recognizer, opts ...Option) *Server {
	s := &Server{
		rec:       rec,
		maxUpload: DefaultMaxUpload,
		maxImages: 64,
		clock:     time.Now,
		newID:     func() string { return "rec_" + uuid.NewString() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/recognize", s.handleRecognize)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.rec == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error", "no model loaded")
	}
	return c.JSON(http.StatusOK, ModelResponse{
		Object:  "model",
		Version: version.String(),
		Model:   s.rec.Info(),
	})
}

func (s *Server) handleRecognize(c *echo.Context) error {
	if s.rec == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error", "no model loaded")
	}
	images, err := s.readImages(c)
	if err != nil {
		return writeFailure(c, err)
	}
	results, err := s.rec.Recognize(c.Request().Context(), images)
	if err != nil {
		return writeFailure(c, err)
	}
	resp := RecognizeResponse{
		ID:      s.newID(),
		Object:  "recognition",
		Created: s.clock().Unix(),
		Model:   string(s.rec.Info().Decoder),
		Results: make([]RecognitionResult, len(results)),
	}
	for i, r := range results {
		resp.Results[i] = RecognitionResult{Index: i, Text: r.Text, Length: r.Length}
	}
	return c.JSON(http.StatusOK, resp)
}
