package reference_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pathfinder-workers/internal/reference"
	"pathfinder-workers/internal/reference/referencetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader_RoundTrip(t *testing.T) {
	want := referencetest.NewData(referencetest.Options{Occupations: 8, Programs: 4})
	raw, err := reference.EncodeYAML(want)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reference.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	got, err := reference.NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.Skills, got.Skills)
	assert.Equal(t, want.Occupations, got.Occupations)
	assert.Equal(t, want.Associations, got.Associations)
	assert.Equal(t, want.Chunks, got.Chunks)
}

func TestFileLoader_Errors(t *testing.T) {
	_, err := reference.NewFileLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background())
	assert.Error(t, err)

	_, err = reference.DecodeYAML([]byte("skills: [unterminated"))
	assert.Error(t, err)
}
