package models

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/sporttrack/internal/shared"
)

var allowedVideoTypes = []string{
	"video/mp4",
	"video/avi",
	"video/mov",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
	"video/webm",
}

var allowedVideoExtensions = []string{"mp4", "avi", "mov", "mkv", "webm"}

// VideoFile describes a candidate upload: its location, name and declared media type.
type VideoFile struct {
	Path string
	Name string
	Type string // Declared media type; may be empty or wrong
	Size int64
}

// Validation is the breakdown behind an [IsVideoFile] decision, kept for diagnostic logging.
type Validation struct {
	Name           string
	Type           string
	Extension      string
	ValidType      bool
	ValidExtension bool
}

// Valid reports whether either signal accepted the file.
func (v Validation) Valid() bool { return v.ValidType || v.ValidExtension }

// KeyVals flattens the validation for structured loggers.
func (v Validation) KeyVals() []any {
	return []any{
		"name", v.Name,
		"type", v.Type,
		"extension", v.Extension,
		"valid_type", v.ValidType,
		"valid_extension", v.ValidExtension,
	}
}

// Extension returns the lowercased text after the last "." of the name,
// or the whole lowercased name when it has no dot.
func (f VideoFile) Extension() string {
	parts := strings.Split(f.Name, ".")
	return strings.ToLower(parts[len(parts)-1])
}

// Validate classifies f against the allowed media types and extensions.
func (f VideoFile) Validate() Validation {
	ext := f.Extension()
	return Validation{
		Name:           f.Name,
		Type:           f.Type,
		Extension:      ext,
		ValidType:      slices.Contains(allowedVideoTypes, f.Type),
		ValidExtension: slices.Contains(allowedVideoExtensions, ext),
	}
}

// IsVideoFile accepts f when its declared type OR its extension is allowed.
//
// Media types are reported inconsistently across platforms, so the extension is an accepted fallback signal.
// Neither check is a security boundary and no content sniffing is done.
func IsVideoFile(f VideoFile) bool {
	return f.Validate().Valid()
}

// OpenVideoFile stats path and builds a [VideoFile], declaring its type from the extension.
func OpenVideoFile(path string) (*VideoFile, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file provided", shared.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidInput, path)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	return &VideoFile{
		Path: path,
		Name: info.Name(),
		Type: mediaType,
		Size: info.Size(),
	}, nil
}
