package scheduler

import "encoding/json"

// parseHeaders decodes an endpoint's HeadersJSON (a flat string-to-string
// JSON object) into a map. Empty input yields a nil map; invalid JSON
// yields an error.
func parseHeaders(headersJSON string) (map[string]string, error) {
	if headersJSON == "" {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
		return nil, err
	}
	return headers, nil
}
