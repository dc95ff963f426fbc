// ABOUTME: Version and product identity constants
// ABOUTME: Shown on the boot splash and reported by the status monitor
package version

const (
	// Version is the firmware version string
	Version = "0.1.0"

	// Product is the product name
	Product = "InkClock"

	// Manufacturer identifies the project
	Manufacturer = "InkClock Project"
)
