// Package metadata discovers model packages on disk, resolves addresses to
// package ids, and detects dependency cycles in the graph workers declare
// through the check_dependency admin call.
package metadata

import (
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Descriptor describes one discovered package. Everything but Dependencies
// is immutable once Scan returns it; Dependencies grows with each
// Manager.AddDependency call (the check_dependency admin method).
type Descriptor struct {
	ID           string
	Type         string
	APIName      string
	APIMethods   []string
	Description  string
	Path         string
	URI          string
	Dependencies []string
}

type manifest struct {
	ModelType   string   `yaml:"model_type"`
	Type        string   `yaml:"type"`
	APIName     string   `yaml:"api_name"`
	APIMethods  []string `yaml:"api_methods"`
	Description string   `yaml:"description"`
}

func (m manifest) resolvedType() string {
	if m.ModelType != "" {
		return m.ModelType
	}
	return m.Type
}

// readManifest loads <dir>/config.yml.
func readManifest(dir string) (manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.yml"))
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, err
	}
	return m, nil
}

// cacheRoot resolves the per-user cache directory packages' private
// endpoints live under, mirroring platformdirs.user_cache_dir("npc-engine").
func cacheRoot() (string, error) {
	if dir := os.Getenv("NPC_ENGINE_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "npc-engine"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "npc-engine"), nil
}

// buildURI returns the ipc:// endpoint a package's worker binds, mirroring
// utils.build_ipc_uri.
func buildURI(id string) (string, error) {
	root, err := cacheRoot()
	if err != nil {
		return "", err
	}
	return "ipc://" + filepath.Join(root, id), nil
}

// Metadata is the descriptive payload returned by get_service_metadata /
// get_services_metadata, mirroring base_service.py's get_metadata.
type Metadata struct {
	ID               string `json:"id"`
	Service          string `json:"service"`
	APIName          string `json:"api_name"`
	Path             string `json:"path"`
	ShortDescription string `json:"service_short_description"`
	FullDescription  string `json:"service_description"`
	Readme           string `json:"readme"`
}

// readReadme mirrors base_service.py's get_metadata readme handling: read
// README.md and keep only the text after the last "---" separator; an
// absent file yields an empty readme rather than an error.
func readReadme(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		return ""
	}
	parts := strings.Split(string(data), "---")
	return parts[len(parts)-1]
}
