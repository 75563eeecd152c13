// package formatter exports analysis reports to various formats (plain text, Markdown, CSV, JSON, YAML)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
	"github.com/desertthunder/sporttrack/internal/tasks"
)

// Export formats accepted by [Export].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formats lists the supported export formats.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON, FormatYAML}

// Report is one analysed video as exported.
type Report struct {
	FileName       string          `json:"file_name"`
	VideoID        string          `json:"video_id"`
	OriginalURL    string          `json:"original_url"`
	ProcessedURL   string          `json:"processed_url"`
	Duration       float64         `json:"duration,omitempty"`
	FrameCount     int             `json:"frame_count,omitempty"`
	FPS            float64         `json:"fps,omitempty"`
	Analysis       models.Analysis `json:"analysis"`
	Metrics        models.Metrics  `json:"metrics"`
	Fallback       bool            `json:"fallback"`
	ReprocessCount int             `json:"reprocess_count,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// FromCycle builds a report from a finished upload cycle. Media URLs are resolved against baseURL.
func FromCycle(r *tasks.CycleResult, baseURL string) Report {
	return Report{
		FileName:     r.File.Name,
		VideoID:      r.Upload.VideoID,
		OriginalURL:  resolve(baseURL, r.Upload.OriginalURL),
		ProcessedURL: resolve(baseURL, r.Upload.ProcessedURL),
		Duration:     r.Upload.Duration,
		FrameCount:   r.Upload.FrameCount,
		FPS:          r.Upload.FPS,
		Analysis:     r.Analysis,
		Metrics:      r.Metrics,
		Fallback:     r.Fallback,
		GeneratedAt:  time.Now().UTC(),
	}
}

// FromRecord builds a report from a journaled cycle.
func FromRecord(rec *models.CycleRecord, baseURL string) Report {
	a := rec.Analysis()
	return Report{
		FileName:       rec.FileName(),
		VideoID:        rec.VideoID(),
		OriginalURL:    resolve(baseURL, rec.OriginalURL()),
		ProcessedURL:   resolve(baseURL, rec.ProcessedURL()),
		Analysis:       a,
		Metrics:        models.ComputeMetrics(a),
		Fallback:       rec.Fallback(),
		ReprocessCount: rec.ReprocessCount(),
		GeneratedAt:    rec.UpdatedAt(),
	}
}

func resolve(base, ref string) string {
	if base == "" || ref == "" {
		return ref
	}
	u, err := shared.ResolveURL(base, ref)
	if err != nil {
		return ref
	}
	return u
}

// ParseFormat normalizes a format name. Empty means text and "md" means markdown.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	case FormatText, FormatMarkdown, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// Export renders reports in format.
func Export(format string, reports ...Report) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatMarkdown:
		return ExportToMarkdown(reports...)
	case FormatCSV:
		return ExportToCSV(reports...)
	case FormatJSON:
		return ExportToJSON(reports...)
	case FormatYAML:
		return ExportToYAML(reports...)
	default:
		return ExportToText(reports...)
	}
}

// ExportToText renders reports as plain text blocks separated by a blank line
func ExportToText(reports ...Report) ([]byte, error) {
	var buf bytes.Buffer

	for i, r := range reports {
		if i > 0 {
			buf.WriteString("\n")
		}

		buf.WriteString(fmt.Sprintf("Video: %s\n", r.FileName))
		buf.WriteString(fmt.Sprintf("ID: %s\n", r.VideoID))
		if r.Duration > 0 {
			buf.WriteString(fmt.Sprintf("Duration: %ss, %d frames at %s fps\n", models.FormatNumber(r.Duration), r.FrameCount, models.FormatNumber(r.FPS)))
		}
		buf.WriteString(fmt.Sprintf("Detection Confidence: %s\n", r.Metrics.DetectionConfidence))
		buf.WriteString(fmt.Sprintf("Poses Detected: %s\n", r.Metrics.PosesDetected))
		buf.WriteString(fmt.Sprintf("Detection Rate: %s\n", r.Metrics.DetectionRate))
		buf.WriteString(fmt.Sprintf("Technique Score: %s\n", r.Metrics.TechniqueScore))
		if r.Fallback {
			buf.WriteString("Note: analysis unavailable, showing placeholder values\n")
		}

		if len(r.Analysis.Recommendations) > 0 {
			buf.WriteString("Recommendations:\n")
			for _, rec := range r.Analysis.Recommendations {
				buf.WriteString(fmt.Sprintf("  - %s\n", rec))
			}
		}

		buf.WriteString(fmt.Sprintf("Original: %s\n", r.OriginalURL))
		buf.WriteString(fmt.Sprintf("Processed: %s\n", r.ProcessedURL))
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders each report as a section with a metrics table
func ExportToMarkdown(reports ...Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Pose Analysis Report\n")

	for _, r := range reports {
		buf.WriteString(fmt.Sprintf("\n## %s\n\n", r.FileName))
		buf.WriteString(fmt.Sprintf("**Video ID**: `%s`\n", r.VideoID))
		if r.Duration > 0 {
			buf.WriteString(fmt.Sprintf("**Duration**: %ss (%d frames, %s fps)\n", models.FormatNumber(r.Duration), r.FrameCount, models.FormatNumber(r.FPS)))
		}
		if r.Fallback {
			buf.WriteString("\n> The analysis could not be fetched; the values below are placeholders.\n")
		}

		buf.WriteString("\n| Metric | Value |\n|---|---|\n")
		buf.WriteString(fmt.Sprintf("| Detection Confidence | %s |\n", r.Metrics.DetectionConfidence))
		buf.WriteString(fmt.Sprintf("| Poses Detected | %s |\n", r.Metrics.PosesDetected))
		buf.WriteString(fmt.Sprintf("| Detection Rate | %s |\n", r.Metrics.DetectionRate))
		buf.WriteString(fmt.Sprintf("| Technique Score | %s |\n", r.Metrics.TechniqueScore))

		if len(r.Analysis.Recommendations) > 0 {
			buf.WriteString("\n### Recommendations\n\n")
			for _, rec := range r.Analysis.Recommendations {
				buf.WriteString(fmt.Sprintf("- %s\n", rec))
			}
		}

		buf.WriteString("\n### Media\n\n")
		buf.WriteString(fmt.Sprintf("- [Original](%s)\n", r.OriginalURL))
		buf.WriteString(fmt.Sprintf("- [Processed](%s)\n", r.ProcessedURL))
	}

	return buf.Bytes(), nil
}

var csvHeaders = []string{
	"File", "Video ID", "Detection Confidence", "Poses Detected", "Detection Rate", "Technique Score",
	"Recommendations", "Fallback", "Original URL", "Processed URL",
}

// ExportToCSV writes one row per report. Recommendations are joined with "; ".
func ExportToCSV(reports ...Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range reports {
		record := []string{
			r.FileName,
			r.VideoID,
			r.Metrics.DetectionConfidence,
			r.Metrics.PosesDetected,
			r.Metrics.DetectionRate,
			r.Metrics.TechniqueScore,
			strings.Join(r.Analysis.Recommendations, "; "),
			strconv.FormatBool(r.Fallback),
			r.OriginalURL,
			r.ProcessedURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders a single report as an object and several as an array
func ExportToJSON(reports ...Report) ([]byte, error) {
	var v any = reports
	if len(reports) == 1 {
		v = reports[0]
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToYAML renders reports like [ExportToJSON], keeping the JSON field names.
func ExportToYAML(reports ...Report) ([]byte, error) {
	data, err := ExportToJSON(reports...)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteExport renders reports in format and writes them to path, creating parent directories.
func WriteExport(path, format string, reports ...Report) error {
	data, err := Export(format, reports...)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// FormatFromPath guesses the export format from a file extension, defaulting to text.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}
