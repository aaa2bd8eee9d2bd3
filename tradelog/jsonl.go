package tradelog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// JSONLLog appends one JSON object per line. Each record is written
// with a single Write on an O_APPEND descriptor, so concurrent external
// readers never observe a partial record. Capacity is enforced with
// oldest-first rotation.
type JSONLLog struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	count      int
	maxEntries int
}

// NewJSONL opens (or creates) the log at path, keeping at most
// maxEntries records; maxEntries <= 0 means unbounded.
func NewJSONL(path string, maxEntries int) (*JSONLLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}

	count, err := countLines(path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("scan trade log: %w", err)
	}

	return &JSONLLog{path: path, file: file, count: count, maxEntries: maxEntries}, nil
}

func (l *JSONLLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxEntries > 0 && l.count >= l.maxEntries {
		if err := l.rotateLocked(); err != nil {
			return err
		}
	}

	data, err := sonic.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode trade log entry: %w", err)
	}
	data = append(data, '\n')

	// One Write call per record keeps appends atomic for readers.
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append trade log entry: %w", err)
	}
	l.count++
	return nil
}

// rotateLocked rewrites the file keeping the newest maxEntries-1
// records, making room for the incoming one.
func (l *JSONLLog) rotateLocked() error {
	lines, err := readLines(l.path)
	if err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}

	keep := l.maxEntries - 1
	if keep < 0 {
		keep = 0
	}
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}

	tmp := l.path + ".rotate"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}
	w := bufio.NewWriter(out)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("rotate trade log: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("rotate trade log: %w", err)
	}
	l.file = file
	l.count = len(lines)
	return nil
}

func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadAll decodes every entry currently in the file. Used by tests and
// the routes/inspection tooling, not by the hot path.
func ReadAll(path string) ([]Entry, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(lines))
	for i, line := range lines {
		var e Entry
		if err := sonic.UnmarshalString(line, &e); err != nil {
			return nil, fmt.Errorf("decode trade log line %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func countLines(path string) (int, error) {
	lines, err := readLines(path)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
