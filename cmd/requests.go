package cmd

import (
	"fmt"
	"strings"

	"github.com/dwcli/dw/internal/config"
	"github.com/dwcli/dw/internal/engine"
	"github.com/dwcli/dw/internal/utils"
)

// buildRequests turns CLI arguments or a YAML URL list into validated
// download requests. Invalid URLs come back as errors; the batch proceeds
// with whatever validated.
func buildRequests(args []string, cfg config.Config) ([]engine.DownloadRequest, []error) {
	var requests []engine.DownloadRequest
	var errs []error

	add := func(url, target string) {
		dest := utils.ResolveDestination(url, target, cfg.Download.DownloadDir)
		req, err := engine.NewRequest(url, dest)
		if err != nil {
			errs = append(errs, err)
			return
		}
		requests = append(requests, req)
	}

	if urlListFile != "" {
		entries, err := utils.ReadDownloadList(urlListFile)
		if err != nil {
			return nil, []error{fmt.Errorf("failed to read URL list: %w", err)}
		}
		for _, entry := range entries {
			add(entry.URL, entry.OutputPath)
		}
		return requests, errs
	}

	target := outputPath
	if len(args) > 1 && target == "" {
		target = args[1]
	}
	add(args[0], target)
	return requests, errs
}

// parseHeaderArgs splits repeated --header flags into a passthrough map.
func parseHeaderArgs(raw []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range raw {
		key, value, found := strings.Cut(h, ":")
		if !found {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}
