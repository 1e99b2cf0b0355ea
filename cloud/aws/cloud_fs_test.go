package aws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMissingFromMirrorFindsUnmirroredFiles(t *testing.T) {
	local := []string{"1.sst", "2.sst", "CURRENT", "3.wal"}
	mirrored := []string{"project_5/1.sst", "project_5/CURRENT"}

	missing := missingFromMirror(local, mirrored, "project_5")
	require.Equal(t, []string{"2.sst"}, missing)
}

func TestMissingFromMirrorSkipsWalAndTmpFiles(t *testing.T) {
	local := []string{"4.wal", "tmp.tmp"}
	missing := missingFromMirror(local, nil, "project_5")
	require.Empty(t, missing)
}
