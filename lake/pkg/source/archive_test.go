package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrodata/prodlake/lake/pkg/source"
	sourcetesting "github.com/petrodata/prodlake/lake/pkg/source/testing"
)

func TestLake_Source_ExtractMember(t *testing.T) {
	t.Parallel()

	archive := sourcetesting.BuildZip(t, map[string]string{
		"readme.txt":               "hello",
		"wellDOS/wellspublic.csv": "API_WellNo\n1\n",
	})

	body, err := source.ExtractMember(archive, "wellspublic.csv")
	require.NoError(t, err)
	assert.Equal(t, "API_WellNo\n1\n", string(body))

	_, err = source.ExtractMember(archive, "wells.csv")
	require.ErrorIs(t, err, source.ErrArchiveMemberNotFound)

	_, err = source.ExtractMember([]byte("garbage"), "wellspublic.csv")
	require.Error(t, err)
}
