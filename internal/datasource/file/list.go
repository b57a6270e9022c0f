package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads a text file line by line and returns the non-empty entries,
// in order. Everything after a '#' is a comment, so both whole-line and
// trailing comments are allowed:
//
//	# free-text columns
//	desc
//	url   # leaks the application id
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}
