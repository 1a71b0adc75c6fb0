package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "John Smith met Anna Karlsson in Stockholm on 12 March 2021. " +
	"Later, on 2021-04-05 they flew to New York. " +
	"The meeting on March 3rd, 2022 went well."

func TestExtract(t *testing.T) {
	got, err := New().Extract(sample)
	require.NoError(t, err)

	assert.Equal(t, []string{"Anna Karlsson", "John Smith", "New York"}, got.Names)
	assert.Equal(t, []string{"12 March 2021", "2021-04-05", "March 3rd, 2022"}, got.Dates)
	assert.Equal(t, []string{"New York", "Stockholm"}, got.Places)
	assert.Equal(t, 29, got.WordCount)
}

func TestExtract_Unicode(t *testing.T) {
	got, err := New().Extract("Göteborg är fin, 2 äpplen! Åsa Öberg bor i Malmö sedan 3 maj 2019.")
	require.NoError(t, err)

	assert.Contains(t, got.Names, "Åsa Öberg")
	assert.Equal(t, []string{"Göteborg", "Malmö"}, got.Places)
	assert.Equal(t, []string{"3 maj 2019"}, got.Dates)
}

func TestExtract_NumericDatesNotInsideNumbers(t *testing.T) {
	got, err := New().Extract("Call 123-45-67890 or meet on 05/06/2023 and 2024/1/9.")
	require.NoError(t, err)
	assert.Equal(t, []string{"05/06/2023", "2024/1/9"}, got.Dates)
}

func TestExtract_Empty(t *testing.T) {
	got, err := New().Extract("")
	require.NoError(t, err)
	assert.Empty(t, got.Names)
	assert.NotNil(t, got.Names)
	assert.Zero(t, got.WordCount)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Visited Boston twice\xff."), 0o644))

	got, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Boston"}, got.Places)
	assert.Equal(t, 3, got.WordCount)

	_, err = File(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
