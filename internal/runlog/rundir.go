package runlog

import (
	"fmt"
	"os"
	"path/filepath"
)

// RunPaths are the on-disk locations a single run logs and video-tapes to.
type RunPaths struct {
	Dir           string
	LogPath       string
	VideoTapePath string
}

// NewRunDir allocates the next numbered subdirectory under baseDir (0, 1,
// 2, ...), one per run, holding that run's venus.log and camera.h265. The
// numbering matches the original field controller so existing log
// directories can be told apart by flight order at a glance.
func NewRunDir(baseDir string) (RunPaths, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return RunPaths{}, fmt.Errorf("creating logs directory: %w", err)
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return RunPaths{}, fmt.Errorf("reading logs directory: %w", err)
	}
	runID := len(entries)

	dir := filepath.Join(baseDir, fmt.Sprintf("%d", runID))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return RunPaths{}, fmt.Errorf("creating run directory: %w", err)
	}

	return RunPaths{
		Dir:           dir,
		LogPath:       filepath.Join(dir, "venus.log"),
		VideoTapePath: filepath.Join(dir, "camera.h265"),
	}, nil
}
