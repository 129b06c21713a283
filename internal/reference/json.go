package reference

import "encoding/json"

// decodeInto is a thin wrapper kept separate from service.go so the
// json import doesn't clutter the main flow-control file.
func decodeInto(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
