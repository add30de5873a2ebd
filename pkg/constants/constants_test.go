package constants_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/orgsync/pkg/constants"
)

func TestSnapshotDefaults(t *testing.T) {
	assert.Greater(t, constants.DefaultSnapshotBudget, constants.DefaultSnapshotInterval)
	assert.LessOrEqual(t, constants.RetryBackoff, constants.MaxRetryBackoff)
}

func TestMutationsAreSingleAttemptByDefault(t *testing.T) {
	assert.Equal(t, 1, constants.DefaultMutationAttempts)
	assert.GreaterOrEqual(t, constants.DefaultReadAttempts, 1)
}
