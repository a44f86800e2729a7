package util

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeJoinStripsTraversal(t *testing.T) {
	require.Equal(t, filepath.Join("/data/uploads", "evil.pdf"), SafeJoin("/data/uploads", "../../etc/evil.pdf"))
	require.Equal(t, filepath.Join("/data/uploads", "report.pdf"), SafeJoin("/data/uploads", "report.pdf"))
}

func TestSanitizeTextDropsControls(t *testing.T) {
	in := "Acme\x00 Corp\x01 report\x7f\n\tline two"
	require.Equal(t, "Acme Corp report\n\tline two", SanitizeText(in))
	require.Equal(t, "", SanitizeText(""))
}
