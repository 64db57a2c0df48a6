package textio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jocic-m/mrengine/pkg/mr"
)

const DefaultBufferSize = 1024 * 1024 // 1MB

// FindFiles returns the regular files matched by a doublestar glob pattern.
// Directories matched by the pattern are skipped.
func FindFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range matches {
		info, err := os.Lstat(name)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, name)
		}
	}
	return files, nil
}

// ReadRecords reads one file into line records keyed by "path:lineNumber".
func ReadRecords(filePath string, bufferSize ...int) ([]mr.Record, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if len(bufferSize) == 0 {
		bufferSize = []int{DefaultBufferSize}
	}
	buffer := make([]byte, bufferSize[0])

	scanner := bufio.NewScanner(file)
	scanner.Buffer(buffer, bufferSize[0])

	var records []mr.Record
	for i := 1; scanner.Scan(); i++ {
		records = append(records, mr.Record{
			Key:   fmt.Sprintf("%s:%d", filePath, i),
			Value: scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// ReadRecordsGlob reads every file matched by pattern, in match order.
func ReadRecordsGlob(pattern string) ([]mr.Record, error) {
	files, err := FindFiles(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files matched the input pattern: %s", pattern)
	}

	var records []mr.Record
	for _, file := range files {
		fileRecords, err := ReadRecords(file)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
	}
	return records, nil
}

// WritePartitions writes each partition's pairs to dir/part-%04d.tsv as
// tab-separated key-value lines.
func WritePartitions(dir string, partitioned map[int][]mr.KeyValue) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for part, pairs := range partitioned {
		outputPath := filepath.Join(dir, fmt.Sprintf("part-%04d.tsv", part))

		lines := make([]string, 0, len(pairs))
		for _, kv := range pairs {
			lines = append(lines, fmt.Sprintf("%s\t%s\n", kv.Key, kv.Value))
		}

		if err := WriteLines(outputPath, lines); err != nil {
			return err
		}
	}
	return nil
}

func WriteLines(filePath string, lines []string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}
