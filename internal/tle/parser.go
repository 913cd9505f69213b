package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Parse reads 3-line NORAD TLE format from r and returns catalog entries.
// Malformed entries are skipped with a warning log. An unnamed 2-line set
// is named after its catalog number.
func Parse(r io.Reader, logger *slog.Logger) ([]CatalogEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []CatalogEntry
	for i := 0; i+1 < len(lines); {
		// Bare 2-line set without a title line.
		if strings.HasPrefix(lines[i], "1 ") && strings.HasPrefix(lines[i+1], "2 ") {
			l1, l2 := lines[i], lines[i+1]
			if _, err := ParseElements(l1, l2); err != nil {
				logger.Warn("skipping invalid TLE entry", "line_index", i, "error", err)
			} else {
				entries = append(entries, CatalogEntry{Name: strings.TrimSpace(l1[2:7]), Line1: l1, Line2: l2})
			}
			i += 2
			continue
		}
		if i+2 >= len(lines) {
			logger.Warn("skipping truncated TLE entry", "line_index", i, "name", lines[i])
			break
		}
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		// Validate line prefixes.
		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Try to find next valid triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		if _, err := ParseElements(line1, line2); err != nil {
			logger.Warn("skipping invalid TLE entry", "name", strings.TrimSpace(name), "error", err)
			i += 3
			continue
		}

		entries = append(entries, CatalogEntry{
			Name:  strings.TrimSpace(strings.TrimPrefix(name, "0 ")),
			Line1: line1,
			Line2: line2,
		})
		i += 3
	}

	return entries, nil
}
