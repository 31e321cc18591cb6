// Package partition provides the columnar partition blob format: building
// immutable partition files from rows, reading them back, and pruning
// partitions against predicates using their summary statistics.
package partition

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"

	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

// Blob layout, front to back:
//
//	snappy-compressed column data (JSON object: column name -> value array)
//	footer (uncompressed JSON)
//	4 bytes footer length (big-endian uint32)
//	4 bytes magic "STRB"
//
// The trailer-at-the-end layout lets the footer be fetched with a single
// byte-range read against the object store.
const (
	blobMagic     = "STRB"
	trailerSize   = 8
	formatVersion = 1
)

// Footer is the self-describing tail of a partition blob.
type Footer struct {
	FormatVersion int                    `json:"format_version"`
	RowCount      int64                  `json:"row_count"`
	Columns       []string               `json:"columns"`
	Stats         map[string]ColumnStats `json:"stats"`
	CreatedAt     int64                  `json:"created_at"`
}

// Encode serializes rows into the partition blob format. Rows must already
// be validated against the schema; stats are the tracker output for the
// same rows.
func Encode(schema types.Schema, rows []types.Row, stats map[string]ColumnStats) ([]byte, error) {
	columnData := make(map[string][]interface{}, len(schema.Columns))
	names := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		names[i] = col.Name
		values := make([]interface{}, len(rows))
		for r, row := range rows {
			values[r] = row[i]
		}
		columnData[col.Name] = values
	}

	raw, err := json.Marshal(columnData)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to marshal column data: %w", err)
	}
	body := snappy.Encode(nil, raw)

	footer := Footer{
		FormatVersion: formatVersion,
		RowCount:      int64(len(rows)),
		Columns:       names,
		Stats:         stats,
		CreatedAt:     time.Now().UnixNano(),
	}
	footerJSON, err := json.Marshal(footer)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to marshal footer: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(body)+len(footerJSON)+trailerSize))
	buf.Write(body)
	buf.Write(footerJSON)

	trailer := make([]byte, trailerSize)
	binary.BigEndian.PutUint32(trailer[0:4], uint32(len(footerJSON)))
	copy(trailer[4:], blobMagic)
	buf.Write(trailer)

	return buf.Bytes(), nil
}

// Decode deserializes a partition blob into rows ordered by the given
// schema. Columns present in the schema but absent from the blob (added
// after the partition was written) decode as NULL.
func Decode(schema types.Schema, data []byte) ([]types.Row, *Footer, error) {
	footer, bodyLen, err := parseFooter(data)
	if err != nil {
		return nil, nil, err
	}

	raw, err := snappy.Decode(nil, data[:bodyLen])
	if err != nil {
		return nil, nil, fmt.Errorf("partition: failed to decompress column data: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var columnData map[string][]interface{}
	if err := dec.Decode(&columnData); err != nil {
		return nil, nil, fmt.Errorf("partition: failed to unmarshal column data: %w", err)
	}

	rows := make([]types.Row, footer.RowCount)
	for r := range rows {
		rows[r] = make(types.Row, len(schema.Columns))
	}

	for i, col := range schema.Columns {
		values, ok := columnData[col.Name]
		if !ok {
			// Column added by a later schema version; all NULL here.
			continue
		}
		if int64(len(values)) != footer.RowCount {
			return nil, nil, fmt.Errorf("partition: column %q has %d values, footer says %d rows",
				col.Name, len(values), footer.RowCount)
		}
		for r, v := range values {
			coerced, err := types.Coerce(col.Type, v)
			if err != nil {
				return nil, nil, fmt.Errorf("partition: column %q row %d: %v", col.Name, r, err)
			}
			rows[r][i] = coerced
		}
	}

	return rows, footer, nil
}

// parseFooter validates the trailer and returns the footer plus the length
// of the compressed body.
func parseFooter(data []byte) (*Footer, int, error) {
	if len(data) < trailerSize {
		return nil, 0, fmt.Errorf("partition: blob too short (%d bytes)", len(data))
	}

	trailer := data[len(data)-trailerSize:]
	if string(trailer[4:]) != blobMagic {
		return nil, 0, fmt.Errorf("partition: bad magic %q", trailer[4:])
	}
	footerLen := int(binary.BigEndian.Uint32(trailer[0:4]))
	bodyLen := len(data) - trailerSize - footerLen
	if bodyLen < 0 {
		return nil, 0, fmt.Errorf("partition: footer length %d exceeds blob size", footerLen)
	}

	var footer Footer
	if err := json.Unmarshal(data[bodyLen:len(data)-trailerSize], &footer); err != nil {
		return nil, 0, fmt.Errorf("partition: failed to unmarshal footer: %w", err)
	}
	if footer.FormatVersion != formatVersion {
		return nil, 0, fmt.Errorf("partition: unsupported format version %d", footer.FormatVersion)
	}

	return &footer, bodyLen, nil
}

// ReadFooter fetches only the footer of a partition blob using byte-range
// reads, without downloading the column data.
func ReadFooter(ctx context.Context, store storage.ObjectStorage, objectPath string, sizeBytes int64) (*Footer, error) {
	if sizeBytes < trailerSize {
		return nil, fmt.Errorf("partition: blob %s too short (%d bytes)", objectPath, sizeBytes)
	}

	trailer, err := store.DownloadRange(ctx, objectPath, sizeBytes-trailerSize, trailerSize)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to read trailer of %s: %w", objectPath, err)
	}
	if len(trailer) != trailerSize || string(trailer[4:]) != blobMagic {
		return nil, fmt.Errorf("partition: bad magic in %s", objectPath)
	}

	footerLen := int64(binary.BigEndian.Uint32(trailer[0:4]))
	if footerLen > sizeBytes-trailerSize {
		return nil, fmt.Errorf("partition: footer length %d exceeds blob size in %s", footerLen, objectPath)
	}

	footerJSON, err := store.DownloadRange(ctx, objectPath, sizeBytes-trailerSize-footerLen, footerLen)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to read footer of %s: %w", objectPath, err)
	}

	var footer Footer
	if err := json.Unmarshal(footerJSON, &footer); err != nil {
		return nil, fmt.Errorf("partition: failed to unmarshal footer of %s: %w", objectPath, err)
	}
	return &footer, nil
}
