package game

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cb-v4s/ghoulies/internal/netcfg"
	"github.com/cb-v4s/ghoulies/protocol"
)

var restClient = &http.Client{Timeout: 10 * time.Second}

// GetJSON performs a GET against the REST API and decodes the response.
func GetJSON[T any](path string) (T, error) {
	var result T

	req, err := http.NewRequest("GET", netcfg.APIBase+path, nil)
	if err != nil {
		return result, err
	}

	resp, err := restClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&result)
	return result, err
}

// ListRooms fetches the joinable rooms for the lobby screen.
func ListRooms() ([]protocol.RoomSummary, error) {
	return GetJSON[[]protocol.RoomSummary]("/rooms")
}
