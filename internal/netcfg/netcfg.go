package netcfg

import "os"

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

var APIBase = getenv("GHOULIES_API_BASE", "http://127.0.0.1:8000")  // REST
var ServerURL = getenv("GHOULIES_WS_URL", "ws://127.0.0.1:8000/ws") // WebSocket
