package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/riskgate/api/schemas"
)

var extensions = map[string]string{
	"json":     ".json",
	"sarif":    ".sarif",
	"markdown": ".md",
}

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_")

// ReportFileName returns <software>_<company>_<YYYYMMDD_HHMMSS><ext>.
func ReportFileName(out *schemas.AssessmentOutput, format string) string {
	ext, ok := extensions[format]
	if !ok {
		ext = ".json"
	}
	return fmt.Sprintf("%s_%s_%s%s",
		nameReplacer.Replace(out.SoftwareName),
		nameReplacer.Replace(out.CompanyName),
		out.Timestamp.Format("20060102_150405"),
		ext)
}

// Save writes one assessment into dir, creating it if needed, and returns the
// path written.
func Save(out *schemas.AssessmentOutput, dir, format, toolVersion string, logger *zap.Logger) (string, error) {
	if format == "" {
		format = "json"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, ReportFileName(out, format))

	r, err := New(format, path, toolVersion, logger)
	if err != nil {
		return "", err
	}
	if err := r.Write(out); err != nil {
		_ = r.Close()
		return "", err
	}
	if err := r.Close(); err != nil {
		return "", err
	}
	logger.Debug("Report saved", zap.String("path", path), zap.String("format", format))
	return path, nil
}

// SaveJSON is Save with the json format.
func SaveJSON(out *schemas.AssessmentOutput, dir string, logger *zap.Logger) (string, error) {
	return Save(out, dir, "json", "", logger)
}
