package affinity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-ring/affinity"
)

func TestPin_NegativeOnlyLocksThread(t *testing.T) {
	assert.NoError(t, affinity.Pin(-1))
}
