package graph

import "encoding/json"

func marshalPath(path []string) ([]byte, error) {
	return json.Marshal(path)
}

// UnmarshalPath decodes a persisted ring assignment's path column back
// into the ordered list of node ids.
func UnmarshalPath(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var path []string
	if err := json.Unmarshal(raw, &path); err != nil {
		return nil, err
	}
	return path, nil
}
