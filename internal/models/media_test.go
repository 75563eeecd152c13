package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/sporttrack/internal/shared"
)

func TestIsVideoFile(t *testing.T) {
	tc := []struct {
		name    string
		file    VideoFile
		want    bool
		wantExt string
		typeOK  bool
		extOK   bool
	}{
		{name: "mp4 with type", file: VideoFile{Name: "clip.mp4", Type: "video/mp4"}, want: true, wantExt: "mp4", typeOK: true, extOK: true},
		{name: "uppercase extension without type", file: VideoFile{Name: "clip.MOV"}, want: true, wantExt: "mov", extOK: true},
		{name: "text file", file: VideoFile{Name: "clip.txt", Type: "text/plain"}, want: false, wantExt: "txt"},
		{name: "type only", file: VideoFile{Name: "recording", Type: "video/quicktime"}, want: true, wantExt: "recording", typeOK: true},
		{name: "matroska extension with octet-stream", file: VideoFile{Name: "match.final.mkv", Type: "application/octet-stream"}, want: true, wantExt: "mkv", extOK: true},
		{name: "webm type with wrong extension", file: VideoFile{Name: "clip.bin", Type: "video/webm"}, want: true, wantExt: "bin", typeOK: true},
		{name: "unlisted video type", file: VideoFile{Name: "clip.flv", Type: "video/x-flv"}, want: false, wantExt: "flv"},
		{name: "empty", file: VideoFile{}, want: false, wantExt: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVideoFile(tt.file); got != tt.want {
				t.Errorf("IsVideoFile(%+v) = %v, want %v", tt.file, got, tt.want)
			}

			v := tt.file.Validate()
			if v.Extension != tt.wantExt {
				t.Errorf("extension = %q, want %q", v.Extension, tt.wantExt)
			}
			if v.ValidType != tt.typeOK || v.ValidExtension != tt.extOK {
				t.Errorf("validation = %+v, want type=%v ext=%v", v, tt.typeOK, tt.extOK)
			}
			if len(v.KeyVals())%2 != 0 {
				t.Error("KeyVals should hold key/value pairs")
			}
		})
	}
}

func TestOpenVideoFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("Regular File", func(t *testing.T) {
		path := filepath.Join(dir, "jump.mp4")
		if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		f, err := OpenVideoFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.Name != "jump.mp4" {
			t.Errorf("expected name jump.mp4, got %s", f.Name)
		}
		if f.Size != int64(len("not really a video")) {
			t.Errorf("unexpected size %d", f.Size)
		}
		if !IsVideoFile(*f) {
			t.Error("expected mp4 file to be accepted")
		}
	})

	t.Run("Empty Path", func(t *testing.T) {
		if _, err := OpenVideoFile(""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		if _, err := OpenVideoFile(filepath.Join(dir, "missing.mp4")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Directory", func(t *testing.T) {
		if _, err := OpenVideoFile(dir); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
