package config

import (
	"encoding/json"
	"os"

	"github.com/fieldstock/shiftledger/internal/flagx"
)

// jsonConfig is a DTO used exclusively for JSON unmarshalling.
type jsonConfig struct {
	ServerAddr   string `json:"server_addr"`
	DatabasePath string `json:"database_path"`
	KeyringDir   string `json:"keyring_dir"`
}

// parseJSON overlays cfg with values from the JSON file named by -c or
// -config. Absent file path means no JSON is loaded; read or unmarshal
// errors panic, this runs once at startup.
func parseJSON(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.KeyringDir != "" {
		cfg.KeyringDir = jc.KeyringDir
	}
}
