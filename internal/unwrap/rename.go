package unwrap

// OutputField describes one published schema field a sub-tool projects out
// of its parent tool's unwrapped response: `name` is the schema key
// consumers see, `path` is where to find it in the raw extracted value.
type OutputField struct {
	Name        string
	Path        string
	Type        string
	Description string
}

// RenameFields transforms extracted so that each record exposes Name
// (the schema key) instead of the raw field found at Path, for every
// field in fields. Arrays are mapped elementwise. A non-record value
// becomes a one-key record under the field's Name when fields has exactly
// one entry, and passes through unchanged otherwise.
func RenameFields(extracted any, fields []OutputField) any {
	if arr, ok := extracted.([]any); ok {
		out := make([]any, len(arr))
		for i, elem := range arr {
			out[i] = renameRecord(elem, fields)
		}
		return out
	}
	return renameRecord(extracted, fields)
}

func renameRecord(record any, fields []OutputField) any {
	m, ok := record.(map[string]any)
	if !ok {
		// A scalar record with a single field: the field maps directly.
		if len(fields) == 1 {
			out := map[string]any{}
			out[fields[0].Name] = record
			return out
		}
		return record
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := ExtractPath(m, f.Path); ok {
			out[f.Name] = v
		}
	}
	return out
}
