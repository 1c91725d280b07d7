package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

var zipSignature = []byte("PK\x03\x04")

// Parse reads an uploaded spreadsheet. The format is taken from the file
// extension, then the declared content type, then the leading bytes.
func Parse(data []byte, filename, contentType string) (*Sheet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	format, err := DetectFormat(data, filename, contentType)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		return parseXLSX(data)
	default:
		return parseDelimited(data)
	}
}

// DetectFormat picks the reader for an upload
func DetectFormat(data []byte, filename, contentType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "spreadsheetml"):
		return FormatXLSX, nil
	case strings.HasPrefix(ct, "text/"), strings.Contains(ct, "csv"):
		return FormatCSV, nil
	}

	if bytes.HasPrefix(data, zipSignature) {
		return FormatXLSX, nil
	}
	if bytes.IndexByte(data, 0) < 0 {
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unsupported format for %q", ErrUnreadableFile, filename)
}
