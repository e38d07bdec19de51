package output

import (
	"encoding/json"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// JSONFormatter renders entities as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatEntities renders the entity snapshot as a JSON array.
func (f *JSONFormatter) FormatEntities(entities []core.Entity) (string, error) {
	if entities == nil {
		entities = []core.Entity{}
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(entities, "", "  ")
	} else {
		data, err = json.Marshal(entities)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
