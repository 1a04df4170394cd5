package integration

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/graybus/ebus-bridge/internal/topic"
)

// Load reads an integration settings file into the variable store and runs
// one constant-folding pass. Malformed entries (no '=' or empty key) are
// skipped silently, matching the file format's lenient contract.
func Load(path string, vars *topic.Store) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening integration file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var last string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			parseEntry(last, vars)
			last = ""
			continue
		}
		if line[0] == '#' {
			// allow commented lines in the middle of e.g. a payload
			continue
		}
		if last == "" {
			last = line
		} else if line[0] == '\t' || line[0] == ' ' {
			last += "\n" + line
		} else {
			parseEntry(last, vars)
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading integration file: %w", err)
	}
	parseEntry(last, vars)

	vars.Reduce()
	return nil
}

// parseEntry stores one logical key[?]=value entry in the variable store.
func parseEntry(entry string, vars *topic.Store) {
	if entry == "" {
		return
	}
	pos := strings.IndexByte(entry, '=')
	if pos <= 0 {
		return
	}
	emptyIfMissing := false
	key := entry[:pos]
	if entry[pos-1] == '?' {
		emptyIfMissing = true
		key = entry[:pos-1]
	}
	key = strings.TrimSpace(key)
	value := strings.TrimSpace(entry[pos+1:])
	if key == "" {
		return
	}
	if !strings.Contains(value, "%") {
		vars.Set(key, value, true)
		return
	}
	vars.Template(key).Parse(value, false, false, emptyIfMissing)
}
