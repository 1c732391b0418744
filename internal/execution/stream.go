package execution

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// maxLineSize bounds a single JSON line. Failure messages can carry
// long stack traces.
const maxLineSize = 4 * 1024 * 1024

// LineError reports a line of a record stream that could not be
// decoded.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// ReadRecords decodes a JSON-lines stream of records. Blank lines are
// ignored. Lines that are not valid JSON are returned as LineErrors
// and do not stop decoding; the returned error is non-nil only when
// reading the stream itself fails.
func ReadRecords(r io.Reader) ([]Record, []LineError, error) {
	var (
		records []Record
		skipped []LineError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			skipped = append(skipped, LineError{Line: line, Err: err})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading records: %w", err)
	}
	return records, skipped, nil
}

// ReadRecordsFile decodes a JSON-lines record file. The path "-"
// reads standard input.
func ReadRecordsFile(path string) ([]Record, []LineError, error) {
	if path == "-" {
		return ReadRecords(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening records %q: %w", path, err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// Chronological returns a copy of records stably ordered by start
// time. Records delivered through different outcome partitions are
// interleaved back into execution order; records with equal start
// times keep their delivery order.
func Chronological(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Merge concatenates outcome partitions in the given order and
// returns the result in chronological order.
func Merge(partitions ...[]Record) []Record {
	var all []Record
	for _, p := range partitions {
		all = append(all, p...)
	}
	return Chronological(all)
}
