//go:build !race

package upkeep

func passwordHashCost() int {
	// Tuned so a single verification lands around 100ms on commodity
	// hardware.
	return 12
}
