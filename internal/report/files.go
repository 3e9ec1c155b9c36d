package report

import (
	"fmt"
	"io"
	"os"

	"github.com/tiersync/tiersync/pkg/config"
	"github.com/tiersync/tiersync/pkg/model"
)

// FilesReporter prints the itemized file list of the last real transfer.
type FilesReporter struct {
	cfg *config.Config
}

// NewFiles creates a files reporter.
func NewFiles(cfg *config.Config) *FilesReporter {
	return &FilesReporter{cfg: cfg}
}

// Write copies the scope's transfer log to w. A scope with no completed
// transfer yet gets an explanatory line instead of an error.
func (r *FilesReporter) Write(w io.Writer, scope model.Scope) error {
	path := r.cfg.TransferLogPath(scope)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(w, "no transfer log for %s scope yet\n", scope)
			return nil
		}
		return fmt.Errorf("open transfer log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat transfer log: %w", err)
	}
	if info.Size() == 0 {
		fmt.Fprintf(w, "last %s transfer moved no files\n", scope)
		return nil
	}

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("read transfer log: %w", err)
	}
	return nil
}
