package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxFilenameLength = 100

var (
	paramsRegex      = regexp.MustCompile(`[?#].*$`)
	specialRegex     = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)
	specialHostRegex = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
)

// DeriveFilename extracts a usable filename from a URL: query and fragment
// stripped, special characters replaced, capped at 100 characters. URLs
// ending in a slash fall back to a name built from the host and path.
func DeriveFilename(url string) string {
	clean := paramsRegex.ReplaceAllString(url, "")
	parts := strings.Split(clean, "/")
	base := parts[len(parts)-1]
	var sanitized string
	if base == "" {
		// URL ends in "/", use everything after the scheme
		base = url
		if _, rest, found := strings.Cut(url, "://"); found {
			base = rest
		}
		sanitized = specialHostRegex.ReplaceAllString(base, "_")
	} else {
		sanitized = specialRegex.ReplaceAllString(base, "_")
	}
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "download"
	}
	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
	}
	return sanitized
}

// DownloadEntry is one row of a YAML URL list file.
type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
}

// ReadDownloadList parses a YAML file of {link, op} entries. A missing
// output path is allowed; the filename is derived from the URL later.
func ReadDownloadList(filePath string) ([]DownloadEntry, error) {
	log := GetLogger("config")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	for i, entry := range entries {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing URL for entry %d", i+1)
		}
	}
	log.Debug().Int("count", len(entries)).Msg("Entries loaded from YAML")
	return entries, nil
}

// ResolveDestination combines a download directory and an optional explicit
// target into the final path for a URL. An existing directory given as the
// target is treated as the download location.
func ResolveDestination(url, target, downloadDir string) string {
	if target != "" {
		if info, err := os.Stat(target); err == nil && info.IsDir() {
			return filepath.Join(target, DeriveFilename(url))
		}
		return target
	}
	if downloadDir != "" {
		return filepath.Join(downloadDir, DeriveFilename(url))
	}
	return DeriveFilename(url)
}
