package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFile_Valid(t *testing.T) {
	path := writeFile(t, "prices.csv",
		"trustee,scheme,fund,date,price\n"+
			"HSBC,SuperTrust Plus,HSI,2025-03-17,24.1530\n"+
			"HSBC,SuperTrust Plus,HSI,2025-03-18,24.2000\n")

	records, skipped, err := ParseFile(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)

	rec := records[0]
	assert.Equal(t, "HSBC-SuperTrust Plus-HSI", rec.FundID)
	assert.Equal(t, "HSBC", rec.Trustee)
	assert.Equal(t, "2025-03-17", rec.PriceDateDisplay)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("24.1530")))
	assert.Equal(t, "2025-03-17", rec.PriceDate.UTC().Format("2006-01-02"))
}

func TestParseFile_BadRowsSkippedSiblingsSurvive(t *testing.T) {
	path := writeFile(t, "prices.csv",
		"trustee,scheme,fund,date,price\n"+
			"HSBC,SuperTrust Plus,HSI,2025-03-17,24.15\n"+
			"HSBC,SuperTrust Plus,HSI,17/03/2025,24.15\n"+ // bad date
			"HSBC,SuperTrust Plus,HSI,2025-03-18,abc\n"+ // bad price
			",SuperTrust Plus,HSI,2025-03-19,24.15\n"+ // missing trustee
			"HSBC,SuperTrust Plus,HSI,2025-03-20,-1.5\n"+ // negative price
			"HSBC,SuperTrust Plus,HSI,2025-03-21,24.30\n")

	records, skipped, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	assert.Len(t, records, 2)
}

func TestParseFile_HeaderStrict(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"wrong column name", "trustee,scheme,fund,day,price\nHSBC,S,F,2025-03-17,1\n"},
		{"wrong order", "scheme,trustee,fund,date,price\nS,HSBC,F,2025-03-17,1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tc.content)
			_, _, err := ParseFile(path)
			assert.Error(t, err)
		})
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	_, _, err := ParseFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
