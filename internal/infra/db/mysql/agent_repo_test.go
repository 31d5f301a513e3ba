package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/pthora/eldwatch/internal/domain/agentstate"
)

func TestSeedArgsFromDefaults(t *testing.T) {
	r := NewAgentRepository(nil, domain.Configuration{
		PollingInterval:    5 * time.Minute,
		MaxConcurrentFixes: 3,
		RequireApproval:    false,
		DryRun:             true,
	})

	args := r.seedArgs()
	require.Len(t, args, 4)
	assert.Equal(t, int64(300000), args[0])
	assert.Equal(t, 3, args[1])
	assert.Equal(t, false, args[2])
	assert.Equal(t, true, args[3])
}

func TestSeedArgsNormalizesZeroValues(t *testing.T) {
	r := NewAgentRepository(nil, domain.Configuration{})

	args := r.seedArgs()
	require.Len(t, args, 4)
	assert.Equal(t, int64(60000), args[0])
	assert.Equal(t, 1, args[1])
}
