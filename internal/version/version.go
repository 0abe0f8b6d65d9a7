// ABOUTME: Product and version constants
// ABOUTME: Reported by the CLI version command and startup logs
package version

import "fmt"

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the user-facing product name
	Product = "syncplay"

	// Manufacturer identifies the publisher
	Manufacturer = "drawjav"
)

// String formats the version line printed by "syncplay version".
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
