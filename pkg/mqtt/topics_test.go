package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "automation/context/circadian/circadian_white", CircadianTopic("circadian_white"))
	assert.Equal(t, "automation/context/circadian/circadian_white/availability", AvailabilityTopic("circadian_white"))
	assert.Equal(t, "automation/command/circadian/circadian_white/refresh", RefreshTopic("circadian_white"))
}
