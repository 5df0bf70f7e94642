// Package sessionhttp exposes a debug snapshot of a channel session over
// HTTP.
package sessionhttp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/offchain/paych/channel"
)

func New(s channel.Snapshotter) http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/", handleSnapshot(s))
	return cors.Default().Handler(m)
}

func handleSnapshot(s channel.Snapshotter) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err := enc.Encode(s.Snapshot())
		if err != nil {
			panic(err)
		}
	}
}
