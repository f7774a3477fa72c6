package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/ocrstack/internal/config"
	"github.com/samcharles93/ocrstack/internal/recognizer"
)

type testRecognizer struct {
	err  error
	seen int
}

func (r *testRecognizer) Recognize(ctx context.Context, images []image.Image) ([]recognizer.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.seen += len(images)
	out := make([]recognizer.Result, len(images))
	for i, img := range images {
		w := img.Bounds().Dx()
		out[i] = recognizer.Result{Text: strings.Repeat("x", w%5), Length: w % 5}
	}
	return out, nil
}

func (r *testRecognizer) Info() recognizer.Info {
	return recognizer.Info{Decoder: config.DecoderTransformer, Bridge: "seq2seq", VocabSize: 39}
}

func newTestEcho(rec Recognizer) *echo.Echo {
	e := echo.New()
	NewServer(rec).Register(e)
	return e
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.SetGray(0, 0, color.Gray{Y: 200})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func do(e *echo.Echo, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := do(newTestEcho(&testRecognizer{}), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}
}

func TestModelInfo(t *testing.T) {
	t.Parallel()
	rec := do(newTestEcho(&testRecognizer{}), http.MethodGet, "/v1/model", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ModelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Object != "model" || resp.Model.Bridge != "seq2seq" || resp.Version == "" {
		t.Fatalf("unexpected model response %+v", resp)
	}
}

func TestRecognizeJSON(t *testing.T) {
	t.Parallel()
	fake := &testRecognizer{}
	raw := pngBytes(t, 43, 32)
	body, _ := json.Marshal(RecognizeRequest{Images: []string{
		base64.StdEncoding.EncodeToString(raw),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 64, 32)),
	}})
	rec := do(newTestEcho(fake), http.MethodPost, "/v1/recognize", echo.MIMEApplicationJSON, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp RecognizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "rec_") || resp.Object != "recognition" || resp.Model != "tf_decoder" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if len(resp.Results) != 2 || resp.Results[0].Text != "xxx" || resp.Results[1].Index != 1 || resp.Results[1].Length != 4 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}
}

func TestRecognizeMultipart(t *testing.T) {
	t.Parallel()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, w := range []int{40, 41, 42} {
		part, err := mw.CreateFormFile("image", "img"+string(rune('a'+i))+".png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(pngBytes(t, w, 32))
	}
	mw.Close()

	fake := &testRecognizer{}
	rec := do(newTestEcho(fake), http.MethodPost, "/v1/recognize", mw.FormDataContentType(), body.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	var resp RecognizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 3 || fake.seen != 3 {
		t.Fatalf("results=%d seen=%d, want 3", len(resp.Results), fake.seen)
	}
}

func TestRecognizeBadRequests(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"no content type", "", `{}`, "Content-Type"},
		{"text body", "text/plain", "hello", "unsupported Content-Type"},
		{"bad json", echo.MIMEApplicationJSON, `{"images":`, "decode request"},
		{"no images", echo.MIMEApplicationJSON, `{"images":[]}`, "at least one image"},
		{"bad base64", echo.MIMEApplicationJSON, `{"images":["@@@"]}`, "images[0]"},
		{"not an image", echo.MIMEApplicationJSON, `{"images":["aGVsbG8="]}`, "images[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestEcho(&testRecognizer{}), http.MethodPost, "/v1/recognize", tt.contentType, []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
			}
			var payload map[string]ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload["error"].Type != "invalid_request_error" || !strings.Contains(payload["error"].Message, tt.want) {
				t.Fatalf("unexpected error %+v", payload["error"])
			}
		})
	}
}

func TestRecognizeEngineFailure(t *testing.T) {
	t.Parallel()
	body, _ := json.Marshal(RecognizeRequest{Images: []string{base64.StdEncoding.EncodeToString(pngBytes(t, 32, 32))}})
	rec := do(newTestEcho(&testRecognizer{err: errors.New("boom")}), http.MethodPost, "/v1/recognize", echo.MIMEApplicationJSON, body)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "server_error") {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTooManyImages(t *testing.T) {
	t.Parallel()
	e := echo.New()
	NewServer(&testRecognizer{}, WithMaxImages(1)).Register(e)
	img := base64.StdEncoding.EncodeToString(pngBytes(t, 32, 32))
	body, _ := json.Marshal(RecognizeRequest{Images: []string{img, img}})
	rec := do(e, http.MethodPost, "/v1/recognize", echo.MIMEApplicationJSON, body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "too many images") {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestDecodeBase64Image(t *testing.T) {
	t.Parallel()
	got, err := decodeBase64Image("data:image/png;base64,aGk=")
	if err != nil || string(got) != "hi" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := decodeBase64Image("data:image/png;base64"); err == nil {
		t.Fatal("expected error for data URL without payload")
	}
}
