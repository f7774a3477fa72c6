package api

import "github.com/samcharles93/ocrstack/internal/recognizer"

// RecognizeRequest is the JSON form of POST /v1/recognize. Each entry is a
// base64 encoded image, optionally as a data URL.
type RecognizeRequest struct {
	Images []string `json:"images"`
}

type RecognizeResponse struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Results []RecognitionResult `json:"results"`
}

type RecognitionResult struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

type ModelResponse struct {
	Object  string          `json:"object"`
	Version string          `json:"version"`
	Model   recognizer.Info `json:"model"`
}
