// Package export writes photo catalog snapshots for offline analysis.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"phototag/internal/fileutil"
	"phototag/internal/queue"
)

// Format selects the output encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatYAML    Format = "yaml"
)

// Record is the flattened export row for one photo.
type Record struct {
	ID          int64    `parquet:"id" yaml:"id"`
	Filename    string   `parquet:"filename" yaml:"filename"`
	StoragePath string   `parquet:"storage_path" yaml:"storage_path"`
	CaptureDate string   `parquet:"capture_date" yaml:"capture_date"`
	Tags        []string `parquet:"tags" yaml:"tags"`
	State       string   `parquet:"state" yaml:"state"`
	Attempts    int64    `parquet:"attempts" yaml:"attempts"`
	LastError   string   `parquet:"last_error" yaml:"last_error,omitempty"`
	TaggedAt    string   `parquet:"tagged_at" yaml:"tagged_at,omitempty"`
}

// yamlDocument wraps YAML exports with a small header.
type yamlDocument struct {
	ExportedAt string   `yaml:"exported_at"`
	Count      int      `yaml:"count"`
	Photos     []Record `yaml:"photos"`
}

// ParseFormat accepts "parquet", "yaml" or "yml".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "parquet":
		return FormatParquet, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (use parquet or yaml)", value)
	}
}

// FormatForPath infers the format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", errors.New("output path needs a .parquet or .yaml extension")
	}
	return ParseFormat(ext)
}

// Records flattens photos into export rows.
func Records(photos []*queue.Photo) []Record {
	records := make([]Record, 0, len(photos))
	for _, p := range photos {
		if p == nil {
			continue
		}
		rec := Record{
			ID:          p.ID,
			Filename:    p.Filename,
			StoragePath: p.StoragePath,
			CaptureDate: p.CaptureDate,
			Tags:        append([]string{}, p.Tags...),
			State:       string(p.State),
			Attempts:    int64(p.Attempts),
			LastError:   p.LastError,
		}
		if p.TaggedAt != nil {
			rec.TaggedAt = p.TaggedAt.UTC().Format(time.RFC3339)
		}
		records = append(records, rec)
	}
	return records
}

// Write encodes records to w.
func Write(w io.Writer, format Format, records []Record) error {
	switch format {
	case FormatParquet:
		writer := parquet.NewGenericWriter[Record](w)
		if _, err := writer.Write(records); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	case FormatYAML:
		doc := yamlDocument{
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
			Count:      len(records),
			Photos:     records,
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteFile atomically writes photos to path in the given format.
func WriteFile(path string, format Format, photos []*queue.Photo) (int, error) {
	records := Records(photos)
	err := fileutil.WriteStreamAtomic(path, 0o644, func(w io.Writer) error {
		return Write(w, format, records)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ReadParquet loads records from a parquet export.
func ReadParquet(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	records := make([]Record, 0, pf.NumRows())
	batch := make([]Record, 128)
	for {
		n, err := reader.Read(batch)
		records = append(records, batch[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
	return records, nil
}
