// Package workload produces the memory access streams the engine replays:
// CSV access traces, a deterministic hot/cold synthetic generator and
// synthetic page contents for the compression codecs.
package workload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Access is one memory access in a trace.
type Access struct {
	TimePs    int64
	Address   uint64
	Size      int64
	IsWrite   bool
	Requester int
}

// CSV column headers for access traces.
var accessColumns = []string{"time_ps", "address", "size", "is_write", "requester"}

// ExportAccessTrace writes accesses to path as CSV. Addresses are written in hex.
func ExportAccessTrace(path string, accesses []Access) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating access trace: %w", err)
	}
	if err := WriteAccessTrace(file, accesses); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteAccessTrace writes the header row and one row per access.
func WriteAccessTrace(w io.Writer, accesses []Access) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(accessColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, a := range accesses {
		row := []string{
			strconv.FormatInt(a.TimePs, 10),
			"0x" + strconv.FormatUint(a.Address, 16),
			strconv.FormatInt(a.Size, 10),
			strconv.FormatBool(a.IsWrite),
			strconv.Itoa(a.Requester),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadAccessTrace reads a CSV access trace from path.
func LoadAccessTrace(path string) ([]Access, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening access trace: %w", err)
	}
	defer func() { _ = file.Close() }()
	return ReadAccessTrace(file)
}

// ReadAccessTrace parses a CSV access trace. The first row must be the
// header. Addresses may be decimal or 0x-prefixed hex.
func ReadAccessTrace(r io.Reader) ([]Access, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(accessColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for i, col := range accessColumns {
		if header[i] != col {
			return nil, fmt.Errorf("CSV column %d is %q, expected %q", i, header[i], col)
		}
	}

	var accesses []Access
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		a, err := parseAccess(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		accesses = append(accesses, a)
	}
	return accesses, nil
}

func parseAccess(row []string) (Access, error) {
	var a Access
	var err error
	if a.TimePs, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return a, fmt.Errorf("parsing time_ps: %w", err)
	}
	if a.TimePs < 0 {
		return a, fmt.Errorf("time_ps must be >= 0, got %d", a.TimePs)
	}
	if a.Address, err = strconv.ParseUint(row[1], 0, 64); err != nil {
		return a, fmt.Errorf("parsing address: %w", err)
	}
	if a.Size, err = strconv.ParseInt(row[2], 10, 64); err != nil {
		return a, fmt.Errorf("parsing size: %w", err)
	}
	if a.Size <= 0 {
		return a, fmt.Errorf("size must be > 0, got %d", a.Size)
	}
	if a.IsWrite, err = strconv.ParseBool(row[3]); err != nil {
		return a, fmt.Errorf("parsing is_write: %w", err)
	}
	if a.Requester, err = strconv.Atoi(row[4]); err != nil {
		return a, fmt.Errorf("parsing requester: %w", err)
	}
	return a, nil
}
