package handler

import (
	"encoding/json"
	"io"
	"net/http"
)

func parseJSONBody(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
