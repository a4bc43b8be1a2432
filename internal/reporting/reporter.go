// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes the outcome of a run to its output.
type Reporter interface {
	// Write emits the run report.
	Write(result schemas.RunResult) error
	// Close releases the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a run reporter for the given output path. An empty path or
// "stdout" writes to standard output.
func New(outputPath string, logger *zap.Logger) (Reporter, error) {
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		return NewJSONReporter(&nopWriteCloser{os.Stdout}, logger), nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return NewJSONReporter(f, logger), nil
}

// JSONReporter renders the run result as indented JSON. It takes ownership
// of the writer.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	mu     sync.Mutex
}

func NewJSONReporter(writer io.WriteCloser, logger *zap.Logger) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		logger: logger.Named("reporter"),
	}
}

func (r *JSONReporter) Write(result schemas.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		r.logger.Error("Failed to encode run report.", zap.Error(err))
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	r.logger.Debug("Run report written.",
		zap.String("status", string(result.Status)),
		zap.Int("steps", result.Steps))
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close report writer: %w", err)
	}
	return nil
}
