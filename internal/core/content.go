package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// expectedHeader is the fixed clinical data schema. Header rows must match
// these names literally, in order, with no extra columns.
var expectedHeader = []string{
	"PatientID", "TrialCode", "DrugCode", "Dosage_mg",
	"StartDate", "EndDate", "Outcome", "SideEffects", "Analyst",
}

const dateLayout = "2006-01-02"

// validOutcomes is the closed enumeration for the Outcome column.
// Matching is exact; no trimming or case folding.
var validOutcomes = map[string]bool{
	"Improved":  true,
	"No Change": true,
	"Worsened":  true,
}

// ValidateContent streams CSV bytes from r and checks them against the
// fixed clinical data schema.
//
// The first record must equal the expected header exactly; a mismatch or
// an empty file yields an invalid verdict with a single error and no row
// scanning. Data rows are numbered from 2. A row may accumulate several
// independent defects; each defect contributes one message to the error
// list and any defect excludes the row from the valid-record count.
//
// The file-level verdict is invalid whenever the error list is non-empty,
// however many valid rows exist.
func ValidateContent(r io.Reader) Verdict {
	var v Verdict

	reader := csv.NewReader(newUTF8Reader(newBOMSkipReader(r)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			v.Errors = append(v.Errors, "File is empty")
		case errors.Is(err, ErrInvalidUTF8):
			v.Errors = append(v.Errors, "File is not valid UTF-8 encoded CSV")
		default:
			v.Errors = append(v.Errors, fmt.Sprintf("File read error: %v", err))
		}
		return v
	}

	if !headerMatches(header) {
		v.Errors = append(v.Errors, fmt.Sprintf(
			"Invalid header. Expected %d fields: %s",
			len(expectedHeader), strings.Join(expectedHeader, ", ")))
		return v
	}

	seen := make(map[string]bool)
	rowNum := 1

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrInvalidUTF8) {
				return Verdict{Errors: []string{"File is not valid UTF-8 encoded CSV"}}
			}
			return Verdict{Errors: []string{fmt.Sprintf("File read error: %v", err)}}
		}

		rowNum++
		v.Rows++
		defects := 0

		if len(row) != 9 {
			v.Defects.FieldCount++
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Row %d: Expected 9 fields, got %d", rowNum, len(row)))
			continue
		}

		dosage, startDate, endDate, outcome := row[3], row[4], row[5], row[6]

		if anyEmpty(row) {
			defects++
			v.Defects.MissingFields++
			v.Errors = append(v.Errors, fmt.Sprintf("Row %d: Missing required fields", rowNum))
		}

		if n, err := strconv.Atoi(dosage); err != nil {
			defects++
			v.Defects.Dosage++
			v.Errors = append(v.Errors, fmt.Sprintf("Row %d: Non-numeric dosage: %q", rowNum, dosage))
		} else if n <= 0 {
			defects++
			v.Defects.Dosage++
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Row %d: Dosage must be positive integer, got %q", rowNum, dosage))
		}

		start, startErr := time.Parse(dateLayout, startDate)
		end, endErr := time.Parse(dateLayout, endDate)
		switch {
		case startErr != nil || endErr != nil:
			defects++
			v.Defects.DateFormat++
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Row %d: Invalid date format (expected YYYY-MM-DD)", rowNum))
		case end.Before(start):
			defects++
			v.Defects.DateRange++
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Row %d: EndDate (%s) before StartDate (%s)", rowNum, endDate, startDate))
		}

		if !validOutcomes[outcome] {
			defects++
			v.Defects.Outcome++
			v.Errors = append(v.Errors, fmt.Sprintf("Row %d: Invalid outcome %q", rowNum, outcome))
		}

		key := row[0] + "_" + row[1] + "_" + row[2]
		if seen[key] {
			defects++
			v.Defects.Duplicate++
			v.Errors = append(v.Errors, fmt.Sprintf("Row %d: Duplicate record", rowNum))
		} else {
			seen[key] = true
		}

		if defects == 0 {
			v.ValidRecords++
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

func headerMatches(header []string) bool {
	if len(header) != len(expectedHeader) {
		return false
	}
	for i, name := range expectedHeader {
		if header[i] != name {
			return false
		}
	}
	return true
}

func anyEmpty(row []string) bool {
	for _, field := range row {
		if field == "" {
			return true
		}
	}
	return false
}
