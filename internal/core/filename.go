package core

import "regexp"

// filenamePattern matches the clinical data naming convention: the literal
// prefix CLINICALDATA, a 14-digit timestamp (YYYYMMDDHHMMSS), and a .CSV
// extension. Prefix and extension match case-insensitively; no other
// characters may appear before, between, or after.
var filenamePattern = regexp.MustCompile(`^(?i)CLINICALDATA\d{14}\.CSV$`)

// ValidFilename reports whether name conforms to the clinical data
// filename convention. The name must be a bare filename, not a path.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}
