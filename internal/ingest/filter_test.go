package ingest

import (
	"testing"

	"github.com/kozaktomas/facefind/internal/config"
)

func testFormats() config.FormatsConfig {
	return config.FormatsConfig{
		AllowedExtensions: []string{"png", "jpg", "jpeg", "webp", "heic", "heif"},
		RawExtensions:     []string{"dng", "arw", "cr2", "nef"},
		TempSuffixes:      []string{".tmp", ".crdownload", ".part"},
	}
}

func TestFilter_Check(t *testing.T) {
	f := NewFilter(testFormats())

	cases := []struct {
		path string
		want Decision
	}{
		{"photo.jpg", Accepted},
		{"photo.jpeg", Accepted},
		{"photo.HEIC", Accepted},
		{"PHOTO.JPG", Accepted},
		{"/some/dir/party.webp", Accepted},
		{"a.tmp", RejectedTemp},
		{"photo.jpg.crdownload", RejectedTemp},
		{"transfer.part", RejectedTemp},
		{".DS_Store", RejectedHidden},
		{".hidden.jpg", RejectedHidden},
		{"photo.dng", RejectedRaw},
		{"IMG_001.ARW", RejectedRaw},
		{"notes.txt", RejectedUnsupported},
		{"video.mp4", RejectedUnsupported},
		{"noextension", RejectedUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := f.Check(tc.path); got != tc.want {
				t.Errorf("Check(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestFilter_Idempotent(t *testing.T) {
	f := NewFilter(testFormats())

	for _, path := range []string{"photo.jpg", "a.tmp", ".DS_Store", "photo.dng", "x.bin"} {
		first := f.Check(path)
		second := f.Check(path)
		if first != second {
			t.Errorf("Check(%q) is not idempotent: %v then %v", path, first, second)
		}
	}
}

func TestFilter_ExtensionsWithDots(t *testing.T) {
	// Config lists may carry a leading dot; the filter normalizes it.
	f := NewFilter(config.FormatsConfig{
		AllowedExtensions: []string{".jpg"},
		RawExtensions:     []string{".dng"},
	})

	if got := f.Check("photo.jpg"); got != Accepted {
		t.Errorf("expected photo.jpg accepted, got %v", got)
	}
	if got := f.Check("photo.dng"); got != RejectedRaw {
		t.Errorf("expected photo.dng rejected as raw, got %v", got)
	}
}
