package pipe

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSocketPath returns the per-user socket the server listens on.
func DefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "pane-toggler", "pipe.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("pane-toggler-%d", os.Getuid()), "pipe.sock")
}
