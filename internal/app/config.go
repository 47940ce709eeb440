package app

import (
	"log/slog"
	"net/http"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home    string       // config directory, e.g. $HOME/.safechat
	APIBase string       // data API base URL, e.g. https://localhost:8000
	WSBase  string       // websocket base URL, e.g. wss://localhost:8000/ws
	HTTP    *http.Client // optional; defaults to http.DefaultClient
	Log     *slog.Logger // optional; defaults to slog.Default
}
