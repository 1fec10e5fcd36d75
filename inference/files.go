package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvisioner considers a model ready when its weights exist under a
// local models directory, one entry per model ID.
type FileProvisioner struct {
	dir string
}

// NewFileProvisioner creates a provisioner rooted at dir.
func NewFileProvisioner(dir string) *FileProvisioner {
	return &FileProvisioner{dir: dir}
}

// Ready reports whether the model's weights are present.
func (p *FileProvisioner) Ready(modelID string) bool {
	path, err := p.Path(modelID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Path returns where the model's weights live. Model IDs must be plain
// names, not paths.
func (p *FileProvisioner) Path(modelID string) (string, error) {
	if modelID == "" {
		return "", fmt.Errorf("model ID is empty")
	}
	if strings.ContainsAny(modelID, `/\`) {
		return "", fmt.Errorf("model ID %q must not contain path separators", modelID)
	}
	return filepath.Join(p.dir, modelID), nil
}
