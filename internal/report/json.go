package report

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/tmr-encoder/internal/artifact"
)

// WriteJSON writes v as indented JSON to name.
func WriteJSON(sink artifact.Sink, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return sink.WriteFile(name, append(data, '\n'))
}
