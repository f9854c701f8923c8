package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hil-labs/wireship/internal/domain"
)

// RecordFile persists the frames in their 64-byte wire encoding.
// Uses atomic write (write to temp file, then rename) to prevent a partial
// file if the daemon dies mid-write.
func RecordFile(path string, frames []domain.Frame) error {
	buf := make([]byte, 0, len(frames)*domain.FrameSize)
	for _, f := range frames {
		buf = f.AppendWire(buf)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wireship-record-*")
	if err != nil {
		return fmt.Errorf("create temp record file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close record file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename record file: %w", err)
	}
	return nil
}
