package mqtt

import "fmt"

// Topic constants for the circadian agent
const (
	// Circadian output base
	TopicCircadianBase = "automation/context/circadian"
)

// Availability payloads
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// CircadianTopic constructs the context topic for a sensor
// Pattern: automation/context/circadian/{sensor}
func CircadianTopic(sensor string) string {
	return fmt.Sprintf("%s/%s", TopicCircadianBase, sensor)
}

// AvailabilityTopic constructs the retained availability topic for a sensor
// Pattern: automation/context/circadian/{sensor}/availability
func AvailabilityTopic(sensor string) string {
	return fmt.Sprintf("%s/%s/availability", TopicCircadianBase, sensor)
}

// RefreshTopic constructs the command topic that forces an anchor refresh
// Pattern: automation/command/circadian/{sensor}/refresh
func RefreshTopic(sensor string) string {
	return fmt.Sprintf("automation/command/circadian/%s/refresh", sensor)
}
