package parsers

import "github.com/username/steuerfolio/src/models"

// RecordReader turns broker export files into typed raw rows. Readers only
// validate and map columns; malformed rows are skipped with a diagnostic,
// never fatal.
type RecordReader interface {
	Read(inputs models.InputFiles) (*models.RawRecordSet, error)
}
