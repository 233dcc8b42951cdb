package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Jordieboyz/commonswiki-bulk-downloader/internal/wiki"
)

// LoadCategories reads the category file: one category per line, blank
// lines and '#' comments ignored. Titles are normalized and deduplicated,
// preserving file order.
func LoadCategories(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open category file: %w", err)
	}
	defer f.Close()

	var cats []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		title := wiki.NormalizeCategory(line)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		cats = append(cats, title)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}

	if len(cats) == 0 {
		return nil, fmt.Errorf("category file %s contains no categories", path)
	}
	return cats, nil
}
