package nemweb

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bobmcallan/nemwatch/internal/models"
)

// NEMWEB CSV files interleave several tables in one member. Column 0 tags
// each row: "I" rows describe a table's columns, "D" rows carry data, "C"
// rows are comment/footer lines. Columns 1 and 2 name the table the row
// belongs to (e.g. DISPATCH,PRICE or P5MIN,REGIONSOLUTION); single-token
// tables like PDREGION use column 1 only.

// DispatchPriceRow is one region's dispatch-interval clearing price from a
// DISPATCH.PRICE table.
type DispatchPriceRow struct {
	SettlementDate string
	RegionID       string
	RRP            float64
}

// RegionSolutionRow is one forecast (or just-completed) interval for one
// region from a P5MIN.REGIONSOLUTION table.
type RegionSolutionRow struct {
	PeriodID string // interval datetime; minimum per region = completed interval
	RegionID string
	RRP      float64
}

// PdRegionRow is one half-hourly predispatch forecast interval for one
// region from a PDREGION table.
type PdRegionRow struct {
	RegionID string
	DateTime string
	RRP      float64
}

// tableSchema declares where a table's fields live. The positional offsets
// are the published fixed layout; the named columns drive the header-scan
// fallback when a file's layout has drifted and the positional pass finds
// nothing. Both passes share this one declaration.
type tableSchema struct {
	report    string // row[1]
	section   string // row[2]; empty for single-token table names
	minFields int
	columns   map[string]int // column name -> fixed positional offset
}

func (s tableSchema) matches(row []string) bool {
	if len(row) < 3 || row[1] != s.report {
		return false
	}
	return s.section == "" || row[2] == s.section
}

var (
	dispatchPriceSchema = tableSchema{
		report:    "DISPATCH",
		section:   "PRICE",
		minFields: 10,
		columns: map[string]int{
			"SETTLEMENTDATE": 4,
			"REGIONID":       6,
			"INTERVENTION":   8,
			"RRP":            9,
		},
	}

	regionSolutionSchema = tableSchema{
		report:    "P5MIN",
		section:   "REGIONSOLUTION",
		minFields: 9,
		columns: map[string]int{
			"INTERVENTION":      5,
			"INTERVAL_DATETIME": 6,
			"REGIONID":          7,
			"RRP":               8,
		},
	}

	pdRegionSchema = tableSchema{
		report:    "PDREGION",
		minFields: 9,
		columns: map[string]int{
			"REGIONID": 6,
			"DATETIME": 7,
			"RRP":      8,
		},
	}
)

// rawTable holds every row collected for one table across all CSV members
// of an archive, plus the table's "I" header row when one was present.
type rawTable struct {
	header []string
	rows   [][]string
}

// collectTable decodes a ZIP archive and gathers the header and data rows
// belonging to schema's table. Corrupt archives and unreadable members
// produce an error; malformed individual rows are simply not collected.
func collectTable(content []byte, schema tableSchema) (rawTable, error) {
	var table rawTable

	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return table, fmt.Errorf("corrupt archive: %w", err)
	}

	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToUpper(member.Name), ".CSV") {
			continue
		}

		f, err := member.Open()
		if err != nil {
			return table, fmt.Errorf("unreadable member %s: %w", member.Name, err)
		}

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		for {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Keep going: a torn row must not abort the rest of the file.
				continue
			}
			if len(row) == 0 || !schema.matches(row) {
				continue
			}
			switch row[0] {
			case "I":
				table.header = row
			case "D":
				if len(row) >= schema.minFields {
					table.rows = append(table.rows, row)
				}
			}
		}
		f.Close()
	}

	return table, nil
}

// resolveOffsets maps schema's named columns to positions found in the "I"
// header row. Returns false when any required column is missing.
func resolveOffsets(schema tableSchema, header []string) (map[string]int, bool) {
	if len(header) == 0 {
		return nil, false
	}
	offsets := make(map[string]int, len(schema.columns))
	for i, col := range header {
		name := strings.ToUpper(cleanField(col))
		if _, want := schema.columns[name]; want {
			offsets[name] = i
		}
	}
	if len(offsets) != len(schema.columns) {
		return nil, false
	}
	return offsets, true
}

func cleanField(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func fieldAt(row []string, offsets map[string]int, name string) (string, bool) {
	i, ok := offsets[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return cleanField(row[i]), true
}

// parseDispatchPrices extracts non-intervention regional prices from a
// DispatchIS archive. Parsing is a pure function of the archive bytes: the
// same input always yields the same rows. Rows with an unknown region code
// or unparseable numerics are skipped, never fatal.
func parseDispatchPrices(content []byte) ([]DispatchPriceRow, error) {
	table, err := collectTable(content, dispatchPriceSchema)
	if err != nil {
		return nil, err
	}

	rows := extractDispatchPrices(table.rows, dispatchPriceSchema.columns)
	if len(rows) == 0 && len(table.rows) > 0 {
		// Positional layout found nothing, fall back to the header scan.
		if offsets, ok := resolveOffsets(dispatchPriceSchema, table.header); ok {
			rows = extractDispatchPrices(table.rows, offsets)
		}
	}
	return rows, nil
}

func extractDispatchPrices(raw [][]string, offsets map[string]int) []DispatchPriceRow {
	var rows []DispatchPriceRow
	for _, row := range raw {
		intervention, ok := fieldAt(row, offsets, "INTERVENTION")
		if !ok || intervention != "0" {
			continue
		}
		region, ok := fieldAt(row, offsets, "REGIONID")
		if !ok || !models.IsNEMRegion(region) {
			continue
		}
		settlement, ok := fieldAt(row, offsets, "SETTLEMENTDATE")
		if !ok {
			continue
		}
		rrpField, ok := fieldAt(row, offsets, "RRP")
		if !ok {
			continue
		}
		rrp, err := strconv.ParseFloat(rrpField, 64)
		if err != nil {
			continue
		}
		rows = append(rows, DispatchPriceRow{
			SettlementDate: settlement,
			RegionID:       region,
			RRP:            rrp,
		})
	}
	return rows
}

// parseRegionSolutions extracts non-intervention P5MIN interval rows for
// all regions from a P5MIN archive.
func parseRegionSolutions(content []byte) ([]RegionSolutionRow, error) {
	table, err := collectTable(content, regionSolutionSchema)
	if err != nil {
		return nil, err
	}

	rows := extractRegionSolutions(table.rows, regionSolutionSchema.columns)
	if len(rows) == 0 && len(table.rows) > 0 {
		if offsets, ok := resolveOffsets(regionSolutionSchema, table.header); ok {
			rows = extractRegionSolutions(table.rows, offsets)
		}
	}
	return rows, nil
}

func extractRegionSolutions(raw [][]string, offsets map[string]int) []RegionSolutionRow {
	var rows []RegionSolutionRow
	for _, row := range raw {
		intervention, ok := fieldAt(row, offsets, "INTERVENTION")
		if !ok || intervention != "0" {
			continue
		}
		region, ok := fieldAt(row, offsets, "REGIONID")
		if !ok || !models.IsNEMRegion(region) {
			continue
		}
		period, ok := fieldAt(row, offsets, "INTERVAL_DATETIME")
		if !ok {
			continue
		}
		rrpField, ok := fieldAt(row, offsets, "RRP")
		if !ok {
			continue
		}
		rrp, err := strconv.ParseFloat(rrpField, 64)
		if err != nil {
			continue
		}
		rows = append(rows, RegionSolutionRow{
			PeriodID: period,
			RegionID: region,
			RRP:      rrp,
		})
	}
	return rows
}

// parsePdRegions extracts predispatch forecast rows for all regions from a
// Predispatch archive. PDREGION rows carry no intervention flag.
func parsePdRegions(content []byte) ([]PdRegionRow, error) {
	table, err := collectTable(content, pdRegionSchema)
	if err != nil {
		return nil, err
	}

	rows := extractPdRegions(table.rows, pdRegionSchema.columns)
	if len(rows) == 0 && len(table.rows) > 0 {
		if offsets, ok := resolveOffsets(pdRegionSchema, table.header); ok {
			rows = extractPdRegions(table.rows, offsets)
		}
	}
	return rows, nil
}

func extractPdRegions(raw [][]string, offsets map[string]int) []PdRegionRow {
	var rows []PdRegionRow
	for _, row := range raw {
		region, ok := fieldAt(row, offsets, "REGIONID")
		if !ok || region == "" {
			continue
		}
		datetime, ok := fieldAt(row, offsets, "DATETIME")
		if !ok {
			continue
		}
		rrpField, ok := fieldAt(row, offsets, "RRP")
		if !ok {
			continue
		}
		rrp, err := strconv.ParseFloat(rrpField, 64)
		if err != nil {
			continue
		}
		rows = append(rows, PdRegionRow{
			RegionID: region,
			DateTime: datetime,
			RRP:      rrp,
		})
	}
	return rows
}
