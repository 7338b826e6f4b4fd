package statements

import (
	"encoding/json"
)

// FormatJSON renders the dry-run summary as indented JSON.
func (s *DryRunStats) FormatJSON() (string, error) {
	bytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
