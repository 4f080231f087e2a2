package dataset

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLake_Dataset_CSV_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "wellspublic.csv")
	tbl := New("id", "county", "longitude")
	tbl.Append("1", "Allegany, NY", "-79.2")
	tbl.Append("2", "", "")

	require.NoError(t, WriteCSV(path, tbl))
	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, tbl, got)
}

func TestLake_Dataset_DecodeCSV_BOMAndRaggedRows(t *testing.T) {
	t.Parallel()

	in := "\ufeffAPI_WellNo, Well_Status\n1,AC,extra\n2\n"
	got, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"API_WellNo", "Well_Status"}, got.Columns)
	assert.Equal(t, [][]string{{"1", "AC"}, {"2", ""}}, got.Rows)

	_, err = DecodeCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestLake_Dataset_WriteFileAtomic_KeepsPreviousOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "oil_production.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("network dropped")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be cleaned up")
}

func TestLake_Dataset_WriteFileAtomic_WorldReadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wells_by_county.csv")
	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write([]byte("county,well_count\n"))
		return err
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestLake_Dataset_Staging_Paths(t *testing.T) {
	t.Parallel()

	s := Staging{RawDir: filepath.Join("data", "raw"), ProcessedDir: filepath.Join("data", "processed")}
	assert.Equal(t, filepath.Join("data", "raw", "oil_production.csv"), s.Raw("oil_production"))
	assert.Equal(t, filepath.Join("data", "processed", "wellspublic.csv"), s.Processed("wellspublic"))
}
