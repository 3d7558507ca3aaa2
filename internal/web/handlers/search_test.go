package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/match"
	"github.com/kozaktomas/facefind/internal/store"
)

type fakeProvider struct {
	vectors [][]float32
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Dim() int     { return 2 }

func (f *fakeProvider) Extract(_ context.Context, _ []byte) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func newTestStore(t *testing.T, recs ...store.Record) store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "faces.gob"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	for _, rec := range recs {
		if err := s.Append(context.Background(), rec); err != nil {
			t.Fatalf("appending test record: %v", err)
		}
	}
	return s
}

func rec(photoRef string, vec []float32) store.Record {
	return store.Record{
		ID:        uuid.New().String(),
		PhotoRef:  photoRef,
		Embedding: vec,
		Model:     "fake",
		Dim:       len(vec),
		CreatedAt: time.Now(),
	}
}

func uploadRequest(t *testing.T, body []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "selfie.png")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(body); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("writing form field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeSearchResponse(t *testing.T, rr *httptest.ResponseRecorder) SearchResponse {
	t.Helper()
	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestSearch_ReturnsMatches(t *testing.T) {
	s := newTestStore(t,
		rec("wedding-001.jpg", []float32{1, 0}),
		rec("wedding-002.jpg", []float32{0, 1}),
	)
	provider := &fakeProvider{vectors: [][]float32{{1, 0}}}
	h := NewSearchHandler(provider, match.NewEngine(s, 0.5), 32<<20, config.EmbeddingConfig{})

	rr := httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, testPNG(t), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeSearchResponse(t, rr)
	want := []string{"wedding-001.jpg"}
	if !reflect.DeepEqual(resp.Matches, want) {
		t.Errorf("expected matches %v, got %v", want, resp.Matches)
	}
	if resp.Count != 1 || !resp.Searched {
		t.Errorf("unexpected response metadata: %+v", resp)
	}
}

func TestSearch_ThresholdOverride(t *testing.T) {
	s := newTestStore(t,
		rec("close.jpg", []float32{1, 0.1}),
		rec("far.jpg", []float32{0, 1}),
	)
	provider := &fakeProvider{vectors: [][]float32{{1, 0}}}
	h := NewSearchHandler(provider, match.NewEngine(s, 0.5), 32<<20, config.EmbeddingConfig{})

	// A tighter override is honored.
	rr := httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, testPNG(t), map[string]string{"threshold": "0.001"}))
	resp := decodeSearchResponse(t, rr)
	if len(resp.Matches) != 0 {
		t.Errorf("tight threshold should match nothing, got %v", resp.Matches)
	}

	// A looser override is ignored; a guest must not be able to widen the
	// search beyond the configured threshold.
	rr = httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, testPNG(t), map[string]string{"threshold": "2"}))
	resp = decodeSearchResponse(t, rr)
	want := []string{"close.jpg"}
	if !reflect.DeepEqual(resp.Matches, want) {
		t.Errorf("loose override must fall back to the default threshold, expected %v, got %v", want, resp.Matches)
	}
}

func TestSearch_MissingFile(t *testing.T) {
	provider := &fakeProvider{}
	h := NewSearchHandler(provider, match.NewEngine(newTestStore(t), 0.5), 32<<20, config.EmbeddingConfig{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("threshold", "0.5")
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := httptest.NewRecorder()
	h.Search(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestSearch_UndecodableUpload(t *testing.T) {
	provider := &fakeProvider{vectors: [][]float32{{1, 0}}}
	h := NewSearchHandler(provider, match.NewEngine(newTestStore(t), 0.5), 32<<20, config.EmbeddingConfig{})

	rr := httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, []byte("definitely not an image"), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeSearchResponse(t, rr)
	if len(resp.Matches) != 0 || !resp.Searched {
		t.Errorf("garbage upload should yield zero matches, got %+v", resp)
	}
}

func TestSearch_NoFaceInSelfie(t *testing.T) {
	provider := &fakeProvider{err: embedding.ErrNoFaceDetected}
	h := NewSearchHandler(provider, match.NewEngine(newTestStore(t), 0.5), 32<<20, config.EmbeddingConfig{})

	rr := httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, testPNG(t), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeSearchResponse(t, rr)
	if len(resp.Matches) != 0 || !resp.Searched {
		t.Errorf("no-face upload should yield zero matches, got %+v", resp)
	}
}

func TestSearch_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("service unavailable")}
	h := NewSearchHandler(provider, match.NewEngine(newTestStore(t), 0.5), 32<<20, config.EmbeddingConfig{})

	rr := httptest.NewRecorder()
	h.Search(rr, uploadRequest(t, testPNG(t), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	resp := decodeSearchResponse(t, rr)
	if len(resp.Matches) != 0 {
		t.Errorf("provider failure should yield zero matches, got %+v", resp)
	}
}
