package api

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/ocrstack/internal/data"
)

// readImages accepts multipart uploads in the repeatable "image" field or a
// JSON RecognizeRequest.
func (s *Server) readImages(c *echo.Context) ([]image.Image, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.maxUpload)

	mediaType, _, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if err != nil {
		return nil, newInvalidRequest("missing or malformed Content-Type", err)
	}
	var images []image.Image
	switch mediaType {
	case echo.MIMEMultipartForm:
		images, err = s.readMultipart(req)
	case echo.MIMEApplicationJSON:
		images, err = s.readJSON(req.Body)
	default:
		return nil, newInvalidRequest(fmt.Sprintf("unsupported Content-Type %q", mediaType), nil)
	}
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, newInvalidRequest("at least one image is required", nil)
	}
	if len(images) > s.maxImages {
		return nil, newInvalidRequest(fmt.Sprintf("too many images: %d (max %d)", len(images), s.maxImages), nil)
	}
	return images, nil
}

func (s *Server) readMultipart(req *http.Request) ([]image.Image, error) {
	if err := req.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, newInvalidRequest("parse multipart form", err)
	}
	files := req.MultipartForm.File["image"]
	images := make([]image.Image, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, newInvalidRequest(fmt.Sprintf("image %d", i), err)
		}
		img, err := data.DecodeImage(f)
		f.Close()
		if err != nil {
			return nil, newInvalidRequest(fmt.Sprintf("image %d (%s)", i, fh.Filename), err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (s *Server) readJSON(body io.Reader) ([]image.Image, error) {
	var payload RecognizeRequest
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, newInvalidRequest("decode request", err)
	}
	images := make([]image.Image, 0, len(payload.Images))
	for i, enc := range payload.Images {
		raw, err := decodeBase64Image(enc)
		if err != nil {
			return nil, newInvalidRequest(fmt.Sprintf("images[%d]", i), err)
		}
		img, err := data.DecodeImage(bytes.NewReader(raw))
		if err != nil {
			return nil, newInvalidRequest(fmt.Sprintf("images[%d]", i), err)
		}
		images = append(images, img)
	}
	return images, nil
}

// decodeBase64Image strips an optional "data:<type>;base64," prefix.
func decodeBase64Image(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		_, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = payload
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
