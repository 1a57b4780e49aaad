package logutil

import (
	"testing"

	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrDiscard(t *testing.T) {
	var nilLogger *logging.Logger
	l := OrDiscard(nilLogger)
	require.NotNil(t, l)
	l.Error("dropped")

	kept := logging.NewLogger("info")
	assert.Same(t, kept, OrDiscard(kept))
}
