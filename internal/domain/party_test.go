package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetKindFollowsIDPrefix(t *testing.T) {
	assert.Equal(t, PartyTeam, Target("S05RYHJ41C6", "academic-support").Kind)
	assert.Equal(t, PartyIndividual, Target("U0OVERFLOW", "overflow").Kind)
	assert.Equal(t, PartyIndividual, Target("W0ENTERPRISE", "").Kind)
	assert.Equal(t, "overflow", Target("U0OVERFLOW", "overflow").DisplayName())
}
