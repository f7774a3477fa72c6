package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/ocrstack/internal/safetensors"
)

const ctcConfig = `
MODEL:
  DECODER: {TYPE: ctc, D_MODEL: 16}
INPUT: {HEIGHT: 32, WIDTH: 64, CHANNELS: 1}
VOCAB: {CHARSET: "0123456789"}
`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(context.Background(), append([]string{"ocrstack"}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInspectReportsAndSaves(t *testing.T) {
	cfg := writeFile(t, "ctc.yaml", ctcConfig)
	out := filepath.Join(t.TempDir(), "state.safetensors")

	stdout, err := runApp(t, "--log-format", "text", "inspect", "--config", cfg, "--freeze", "--save", out)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"decoder:    ctc (memory 16, vocab 11)", "encoder:    tf_encoder (none)", "projection: 512 -> 16", "(trainable 0)"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("missing %q in:\n%s", want, stdout)
		}
	}

	f, err := safetensors.Open(out)
	if err != nil {
		t.Fatalf("open saved state: %v", err)
	}
	if f.Metadata["decoder"] != "ctc" {
		t.Fatalf("metadata = %v", f.Metadata)
	}
	if _, ok := f.Tensor("decoder.classifier.weight"); !ok {
		t.Fatal("saved state is missing the classifier")
	}
}

func TestInspectRejectsUnknownType(t *testing.T) {
	cfg := writeFile(t, "bad.yaml", "MODEL:\n  BACKBONE: {TYPE: vgg16}\n")
	_, err := runApp(t, "inspect", "--config", cfg)
	if err == nil || !strings.Contains(err.Error(), "vgg16") {
		t.Fatalf("error = %v", err)
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, err := runApp(t, "--log-level", "loud", "version"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestVersion(t *testing.T) {
	stdout, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "version:") {
		t.Fatalf("unexpected output %q", stdout)
	}
}
