package redis

import "fmt"

// Key construction helpers for the circadian agent

// SunAnchorsKey is the hash holding next_dawn, next_noon and next_dusk
// Pattern: sun:anchors
const SunAnchorsKey = "sun:anchors"

// CircadianStateKey returns the key for a sensor's current state (hash)
// Pattern: circadian:state:{sensor}
func CircadianStateKey(sensor string) string {
	return fmt.Sprintf("circadian:state:%s", sensor)
}
