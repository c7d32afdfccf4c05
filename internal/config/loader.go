package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitescraper"

// xdgConfigFile is the file name looked up inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrDuplicateSite is returned when two site keys name the same host.
	ErrDuplicateSite = errors.New("duplicate site entry")
)

// LoadConfigFile reads the site configuration at path.
//
// Design decision: Decoding is strict (unknown keys are errors) because a
// misspelled key such as "ignorePattern" would otherwise be dropped and the
// crawl would quietly fetch pages the user meant to skip.
//
// An empty file is a valid, empty configuration. Site keys are hosts and are
// lowercased so they match the lowercased seed host.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the user chooses the config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, sc := range cf.Sites {
		key := strings.ToLower(strings.TrimSpace(host))
		if _, dup := sites[key]; dup {
			return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateSite, key, path)
		}
		sites[key] = sc
	}
	cf.Sites = sites

	return &cf, nil
}

// ConfigSearchPaths lists where FindConfigFile looks when no path is given,
// in priority order: the working directory, the home directory, then the XDG
// config directory. Locations that cannot be determined are left out.
func ConfigSearchPaths() []string {
	paths := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, filepath.Join(XDGConfigDir(), xdgConfigFile))
}

// FindConfigFile returns the configuration file to load, or "" when there is
// none. An explicit configPath is only accepted if it exists; otherwise the
// first existing entry of ConfigSearchPaths wins.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return firstRegularFile([]string{configPath})
	}
	return firstRegularFile(ConfigSearchPaths())
}

// firstRegularFile skips directories, so a directory named .sitescraper in
// the working directory does not shadow the home configuration.
func firstRegularFile(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
