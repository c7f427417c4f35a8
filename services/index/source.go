package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meghashyamc/playfinder/db"
)

const maxSourceFileSize = 50 * 1024 * 1024

var ErrNoSourceFiles = errors.New("no listing files found")

// discoverSourceFiles returns path itself when it is a file, or every .json
// file below it when it is a directory. Hidden files and directories are skipped.
func (s *Service) discoverSourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error("could not read import path", "path", path, "err", err.Error())
		return nil, fmt.Errorf("could not read import path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(current string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Error("could not walk through file or directory", "path", current, "err", err.Error())
			if errors.Is(err, os.ErrPermission) {
				return nil
			}
			return err
		}

		hidden := strings.HasPrefix(info.Name(), ".") && current != path
		if info.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !isListingFile(current) {
			return nil
		}

		files = append(files, current)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk import path: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSourceFiles, path)
	}

	sort.Strings(files)
	return files, nil
}

// readListings parses and normalizes every file. Invalid listings are skipped
// and counted. When an id repeats, the last occurrence wins.
func (s *Service) readListings(files []string, importedAt time.Time) ([]db.Listing, int, error) {
	positions := make(map[int64]int)
	listings := make([]db.Listing, 0)
	skipped := 0

	for _, file := range files {
		parsed, err := readListingFile(file)
		if err != nil {
			s.logger.Error("could not parse listing file", "path", file, "err", err.Error())
			return nil, 0, fmt.Errorf("could not parse %s: %w", file, err)
		}

		for i, listing := range parsed {
			normalized, err := normalizeListing(listing, importedAt)
			if err != nil {
				s.logger.Warn("skipping invalid listing", "path", file, "position", i, "err", err.Error())
				skipped++
				continue
			}
			if position, ok := positions[normalized.ID]; ok {
				listings[position] = normalized
				continue
			}
			positions[normalized.ID] = len(listings)
			listings = append(listings, normalized)
		}
	}

	return listings, skipped, nil
}

func readListingFile(path string) ([]db.Listing, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() > maxSourceFileSize {
		return nil, fmt.Errorf("file is larger than %d bytes", maxSourceFileSize)
	}

	var listings []db.Listing
	if err := json.NewDecoder(io.LimitReader(file, maxSourceFileSize)).Decode(&listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func isListingFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
