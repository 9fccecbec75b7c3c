package deps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"filmroom/internal/config"
	"filmroom/internal/services"
)

// DirStatus reports whether a working directory is usable.
type DirStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Writable  bool   `json:"writable"`
	FreeBytes uint64 `json:"free_bytes,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Directory names a directory a run writes to.
type Directory struct {
	Name string
	Path string
}

// WorkingDirectories lists the output and log directories, plus the sqlite
// store's parent for that backend.
func WorkingDirectories(cfg *config.Config) []Directory {
	dirs := []Directory{
		{Name: "Output directory", Path: cfg.Paths.OutputDir},
		{Name: "Log directory", Path: cfg.Paths.LogDir},
	}
	if cfg.VectorStore.Backend == config.BackendSQLite {
		dirs = append(dirs, Directory{Name: "Corpus directory", Path: filepath.Dir(cfg.VectorStore.Path)})
	}
	return dirs
}

// CheckDirectories runs CheckDirectory over dirs in order.
func CheckDirectories(dirs []Directory) []DirStatus {
	statuses := make([]DirStatus, len(dirs))
	for i, dir := range dirs {
		statuses[i] = CheckDirectory(dir.Name, dir.Path)
	}
	return statuses
}

// CheckDirectory verifies path is a directory the process can read, write
// and traverse, and records the space available to unprivileged users.
func CheckDirectory(name, path string) DirStatus {
	status := DirStatus{Name: name, Path: path}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		status.Detail = "does not exist"
		return status
	case err != nil:
		status.Detail = fmt.Sprintf("stat: %v", err)
		return status
	case !info.IsDir():
		status.Detail = "not a directory"
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
		return status
	}
	status.Writable = true

	var fsStat unix.Statfs_t
	if err := unix.Statfs(path, &fsStat); err != nil {
		status.Detail = fmt.Sprintf("statfs: %v", err)
		return status
	}
	status.FreeBytes = fsStat.Bavail * uint64(fsStat.Bsize)
	status.Detail = humanize.Bytes(status.FreeBytes) + " free"
	return status
}

// RequireWritable returns an input error naming every unusable directory.
func RequireWritable(statuses []DirStatus) error {
	for _, status := range statuses {
		if !status.Writable {
			return services.Wrap(services.ErrInput, "input", "check_directories",
				fmt.Sprintf("%s %s: %s", status.Name, status.Path, status.Detail), nil)
		}
	}
	return nil
}
