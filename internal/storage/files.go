package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

const maxEntries = 500

// LoadAudit reads the administrative command log from file
func LoadAudit(dataDir string) ([]string, error) {
	path := filepath.Join(dataDir, "audit.txt")
	lines, err := readLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return lines, nil
}

// SaveAudit writes the administrative command log (max 500 entries)
func SaveAudit(dataDir string, entries []string) error {
	path := filepath.Join(dataDir, "audit.txt")
	// Trim to max entries (keep newest at end)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return writeLines(path, entries)
}

// AddAudit appends a new audit entry
func AddAudit(entries []string, entry string) []string {
	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[1:]
	}
	return entries
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return err
		}
	}
	return nil
}
