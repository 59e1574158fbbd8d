package distribution

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"meridian-hq/aegis/pkg/policy"
)

// maxBundleFileSize bounds a single bundle file to keep a corrupt or
// misplaced file from exhausting memory on load.
const maxBundleFileSize = 1 << 20 // 1 MiB

// Bundle is the on-disk YAML form of a set of policies.
type Bundle struct {
	Policies []*policy.Policy `yaml:"policies"`
}

// LoadBundleFile parses one YAML bundle file and validates every
// policy in it.
func LoadBundleFile(path string) ([]*policy.Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("distribution: failed to access bundle %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("distribution: bundle %q is not a regular file", path)
	}
	if info.Size() > maxBundleFileSize {
		return nil, fmt.Errorf("distribution: bundle %q exceeds %d bytes", path, maxBundleFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("distribution: failed to read bundle %q: %w", path, err)
	}

	var bundle Bundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("distribution: failed to parse bundle %q: %w", path, err)
	}

	for _, p := range bundle.Policies {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("distribution: bundle %q: %w", path, err)
		}
	}
	return bundle.Policies, nil
}

// LoadBundleDir loads every .yaml/.yml bundle file in dir, sorted by
// file name so repeated loads see policies in a deterministic order.
func LoadBundleDir(dir string) ([]*policy.Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("distribution: failed to read bundle dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)

	var policies []*policy.Policy
	for _, f := range files {
		loaded, err := LoadBundleFile(f)
		if err != nil {
			return nil, err
		}
		policies = append(policies, loaded...)
	}
	return policies, nil
}
