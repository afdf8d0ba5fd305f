// Package envcfg reads the environment flags collaborating backends and the
// dispatch core consult at runtime.
package envcfg

import (
	"os"
	"strings"
)

// NoNetwork reports whether IMGIO_NO_NETWORK is set to a truthy value. When
// it is, any step that would touch the network must fail hard instead of
// attempting the request.
func NoNetwork() bool {
	return truthy(os.Getenv("IMGIO_NO_NETWORK"))
}

// ExecutableOverride returns the path configured for a backend's external
// executable via IMGIO_<PLUGIN>_EXE, or "" when unset. Backends that shell
// out to an external process consult this before searching PATH.
func ExecutableOverride(plugin string) string {
	key := "IMGIO_" + strings.ToUpper(strings.ReplaceAll(plugin, "-", "_")) + "_EXE"
	return os.Getenv(key)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
