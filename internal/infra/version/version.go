package version

import (
	"net/http"
	"runtime"

	"github.com/sugawarayuuta/sonnet"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Handler writes version info as JSON
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = sonnet.NewEncoder(w).Encode(info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()})
}
