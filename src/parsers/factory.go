package parsers

import (
	"fmt"

	"github.com/username/steuerfolio/src/parsers/ibkr"
)

// GetReader returns the record reader for a broker source.
func GetReader(source string) (RecordReader, error) {
	switch source {
	case "ibkr":
		return ibkr.NewReader(), nil
	default:
		return nil, fmt.Errorf("no record reader available for source: %s", source)
	}
}
