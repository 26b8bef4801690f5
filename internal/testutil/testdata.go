package testutil

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"runtime"

	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/data"
	"github.com/edgeflare/smt/pkg/pipeline/record"
)

func readFile(filename string) ([]byte, error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)
	return os.ReadFile(filepath.Join(dir, filename))
}

// LoadJSON reads a JSON file next to this package. Objects are decoded as *data.Map so key order is kept.
func LoadJSON(filename string) (any, error) {
	b, err := readFile(filename)
	if err != nil {
		return nil, err
	}
	return data.DecodeJSON(b)
}

// LoadRecords reads a file of newline-delimited records in the converter.RecordConverter format.
// Blank lines are skipped.
func LoadRecords(filename string, schemasEnable bool) ([]*record.Record, error) {
	b, err := readFile(filename)
	if err != nil {
		return nil, err
	}

	c := converter.NewRecordConverter(schemasEnable)
	var records []*record.Record
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r, err := c.Decode(line)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}
