package info

import "runtime/debug"

// GetVersion returns the main module version recorded at build time.
func GetVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
