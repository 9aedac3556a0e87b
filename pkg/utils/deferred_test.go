package utils

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredWriter(t *testing.T) {
	var d DeferredWriter
	log := zerolog.New(&d)

	log.Info().Msg("first")
	log.Warn().Msg("second")
	assert.Equal(t, 2, d.Len())

	var out bytes.Buffer
	require.NoError(t, d.Flush(&out))

	assert.Zero(t, d.Len())
	assert.Less(t, bytes.Index(out.Bytes(), []byte("first")), bytes.Index(out.Bytes(), []byte("second")))

	out.Reset()
	require.NoError(t, d.Flush(&out))
	assert.Empty(t, out.String())
}
