package manifest

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/refdex-dev/refdex/internal/errors"
)

const (
	// ManifestFileName is the name of the registry file.
	ManifestFileName = "refdex.toml"

	// EnvHome overrides the directory that holds the global registry.
	EnvHome = "REFDEX_HOME"

	// globalDirName is the dot-directory holding the global manifest.
	globalDirName = ".refdex"
)

// ResolvePath returns the manifest path for the given flags. An explicit
// registry directory wins, then the global location ($REFDEX_HOME or the
// home directory), then the working directory.
func ResolvePath(registryDir string, global bool) (string, error) {
	if registryDir != "" {
		return filepath.Join(registryDir, ManifestFileName), nil
	}
	if global {
		base := os.Getenv(EnvHome)
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", errors.New("E080").
					WithDetail("Could not determine the home directory: " + err.Error()).
					WithSuggestion("Set " + EnvHome + " to the directory that should hold the global registry")
			}
			base = home
		}
		return filepath.Join(base, globalDirName, ManifestFileName), nil
	}
	return ManifestFileName, nil
}

// Exists checks if a manifest file exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads and validates the manifest at the given path. A missing file
// and a malformed file are distinct conditions with distinct codes.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E020").
				WithDetail("No "+ManifestFileName+" found at "+path).
				WithSuggestion("Run 'refdex init' to create a registry")
		}
		return nil, errors.New("E080").
			WithDetail("Could not read " + path).
			Wrap(err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E021").
			WithDetail("Failed to parse "+path+": "+err.Error()).
			WithSuggestion("Fix the TOML by hand or recreate the registry with 'refdex init'")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest atomically: marshal, write to a temp file in
// the destination directory, flush, then rename over the target. A crash
// mid-write never corrupts an existing manifest.
func Save(path string, m *Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return errors.New("E021").Wrap(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.New("E080").
			WithDetail("Could not create " + dir).
			Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, "."+ManifestFileName+".tmp.*")
	if err != nil {
		return errors.New("E080").
			WithDetail("Could not create a temporary file in " + dir).
			Wrap(err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.New("E080").WithDetail("Could not write " + tmpPath).Wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.New("E080").WithDetail("Could not flush " + tmpPath).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New("E080").WithDetail("Could not close " + tmpPath).Wrap(err)
	}

	// The manifest stays human-editable; temp files are created 0600.
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errors.New("E080").Wrap(err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New("E080").
			WithDetail("Could not rename " + tmpPath + " to " + path).
			Wrap(err)
	}
	return nil
}
