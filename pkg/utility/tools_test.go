package utility

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"05-03-2024, 14:07:09", "05-03-2024, 14:07:09"},
		{"05/03/2024, 14.07.09", "05-03-2024, 14:07:09"},
		{"5/3/2024, 9.07.09", "05-03-2024, 09:07:09"},
		{"03/05/2024, 14:07:09", "05-03-2024, 14:07:09"},
		{"3/5/2024 2:07:09", "05-03-2024, 02:07:09"},
		{"yesterday", "yesterday"},
		{"", ""},
	}
	for _, tt := range tests {
		got := NormalizeTimestamp(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, NormalizeTimestamp(got), "idempotent for %q", tt.in)
	}
}

func TestNormalizeTimestampLayouts(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
	want := FormatTimestamp(ts)

	assert.Equal(t, want, NormalizeTimestamp(ts.Format(time.RFC3339)))
	assert.Equal(t, "05-03-2024, 14:07:09", want)
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		-1:                   "0 B",
		0:                    "0 B",
		512:                  "512 B",
		1024:                 "1 KB",
		1536:                 "1.5 KB",
		1048576:              "1 MB",
		5 * 1024 * 1024:      "5 MB",
		1610612736:           "1.5 GB",
		1099511627776 * 3:    "3 TB",
		1099511627776 * 2048: "2048 TB",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatBytes(in), "%d", in)
	}
}

func TestMakeParentDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data", "nested", "hilink.db")

	require.NoError(t, MakeParentDir(file))
	info, err := os.Stat(filepath.Dir(file))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// existing directory is fine
	require.NoError(t, MakeParentDir(file))
	require.NoError(t, MakeParentDir("hilink.db"))
}
