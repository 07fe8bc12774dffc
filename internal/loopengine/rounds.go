package loopengine

import "fmt"

// exhaustionNote builds the synthetic, system-visible note recorded when a
// Run hits its round budget. It is never sent back to the model: the loop
// is terminating, so there is no further turn for it to poison.
func exhaustionNote(maxRounds int) string {
	return fmt.Sprintf("tool-calling round budget exhausted after %d rounds; returning accumulated response", maxRounds)
}
