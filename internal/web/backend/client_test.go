package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"structify/internal/web/models"

	"go.uber.org/zap/zaptest"
)

type captured struct {
	path        string
	filename    string
	contentType string
	image       []byte
	fields      map[string]string
}

func captureServer(t *testing.T, status int, reply []byte, got *captured, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		got.path = r.URL.Path
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile(ImageField)
		if err != nil {
			t.Errorf("image field missing: %v", err)
		} else {
			got.filename = header.Filename
			got.contentType = header.Header.Get("Content-Type")
			got.image, _ = io.ReadAll(file)
			file.Close()
		}
		got.fields = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			got.fields[key] = values[0]
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(status)
		w.Write(reply)
	}))
}

func TestProcessSendsImageOnly(t *testing.T) {
	var got captured
	var calls int32
	server := captureServer(t, http.StatusOK, []byte("PK-archive"), &got, &calls)
	defer server.Close()

	client := NewClient(server.URL+"/", 0, zaptest.NewLogger(t))
	img := Image{Name: "plan.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}

	data, err := client.Process(context.Background(), img, nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if string(data) != "PK-archive" {
		t.Errorf("body = %q", data)
	}
	if got.path != "/process" {
		t.Errorf("path = %s, want /process", got.path)
	}
	if got.filename != "plan.png" || got.contentType != "image/png" {
		t.Errorf("file part = %s (%s)", got.filename, got.contentType)
	}
	if !bytes.Equal(got.image, img.Data) {
		t.Error("image bytes changed in transit")
	}
	if len(got.fields) != 0 {
		t.Errorf("expected no threshold fields, got %v", got.fields)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestProcessSendsEveryThreshold(t *testing.T) {
	var got captured
	var calls int32
	server := captureServer(t, http.StatusOK, []byte("zip"), &got, &calls)
	defer server.Close()

	thresholds := models.DefaultThresholds()
	thresholds["bedroom"] = 0.8
	thresholds["wall"] = 0
	thresholds["door"] = 1

	client := NewClient(server.URL, 0, zaptest.NewLogger(t))
	if _, err := client.Process(context.Background(), Image{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("jpg")}, thresholds); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(got.fields) != len(models.ThresholdCategories) {
		t.Fatalf("got %d fields, want %d: %v", len(got.fields), len(models.ThresholdCategories), got.fields)
	}
	want := map[string]string{"bedroom": "0.8", "wall": "0", "door": "1", "kitchen": "0.5"}
	for key, value := range want {
		if got.fields[key] != value {
			t.Errorf("field %s = %q, want %q", key, got.fields[key], value)
		}
	}
}

func TestProcessNonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusMultipleChoices} {
		var got captured
		var calls int32
		server := captureServer(t, status, []byte("nope"), &got, &calls)

		client := NewClient(server.URL, 0, zaptest.NewLogger(t))
		_, err := client.Process(context.Background(), Image{Name: "a.png", Data: []byte("x")}, nil)
		server.Close()

		if !errors.Is(err, ErrProcessingFailed) {
			t.Errorf("status %d: err = %v, want ErrProcessingFailed", status, err)
		}
		if calls != 1 {
			t.Errorf("status %d: calls = %d, no retry expected", status, calls)
		}
	}
}

func TestProcessTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, 0, zaptest.NewLogger(t))
	_, err := client.Process(context.Background(), Image{Name: "a.png", Data: []byte("x")}, nil)
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("err = %v, want ErrProcessingFailed", err)
	}
}

func TestProcessHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 0, zaptest.NewLogger(t))
	_, err := client.Process(ctx, Image{Name: "a.png", Data: []byte("x")}, nil)
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("err = %v, want ErrProcessingFailed", err)
	}
}

func TestEndpoint(t *testing.T) {
	client := NewClient("https://example.test///", 0, nil)
	if client.Endpoint() != "https://example.test/process" {
		t.Errorf("Endpoint = %s", client.Endpoint())
	}
}
