package table

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV_HeadersAndLines(t *testing.T) {
	data := "\xEF\xBB\xBFTitle,Brand Handle,Sizes\n" +
		"Studio Jacket, acme ,S|M|L\n" +
		"\n" +
		"\"Tote, Large\",=\"acme\",\n"

	rows, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Studio Jacket", rows[0].Get("title"))
	assert.Equal(t, "acme", rows[0].Get("brand_handle"))
	assert.Equal(t, 4, rows[1].Line, "blank line is skipped but still counted")
	assert.Equal(t, "Tote, Large", rows[1].Get("title"))
	assert.Equal(t, "acme", rows[1].Get("brand_handle"))
	assert.False(t, rows[1].Has("sizes"))
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSV_InvalidUTF8IsSanitized(t *testing.T) {
	data := "title\ncaf\xe9 bag\n"
	rows, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "caf? bag", rows[0].Get("title"))
}

func TestSanitizer_SplitRune(t *testing.T) {
	// One byte per read forces every multi-byte rune to straddle reads.
	in := "crème brûlée"
	r := cleanStream(iotest.OneByteReader(strings.NewReader(in)))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestRowPick(t *testing.T) {
	r := NewRow(5, map[string]string{"Name": "Jacket", "slug": "", "Handle": "jkt"})

	assert.Equal(t, "Jacket", r.Pick("title", "name"))
	assert.Equal(t, "jkt", r.Pick("slug", "handle"), "empty column falls through")
	v, key := r.PickKey("slug", "handle")
	assert.Equal(t, "jkt", v)
	assert.Equal(t, "handle", key)
	assert.Equal(t, "", r.Pick("missing"))
	assert.Equal(t, 5, r.Line)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"S", "M", "L"}, SplitList(" S | M ||L "))
	assert.Equal(t, []string{"wool, blend"}, SplitList("wool, blend"))
	assert.Nil(t, SplitList(""))
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		"  plain ":   "plain",
		`="00123"`:   "00123",
		`"quoted"`:   "quoted",
		`'single'`:   "single",
		`"`:          `"`,
		"":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanCell(in), "CleanCell(%q)", in)
	}
}

func TestReadXLSX_PrefersProductsSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"ignored"}))
	_, err := f.NewSheet("Products")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Products", "A1", &[]string{"Title", "Price"}))
	require.NoError(t, f.SetSheetRow("Products", "A2", &[]string{"Studio Jacket", "180"}))
	require.NoError(t, f.SetSheetRow("Products", "A4", &[]string{"Tote", "90"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := ReadXLSX(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Studio Jacket", rows[0].Get("title"))
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "90", rows[1].Get("price"))
	assert.Equal(t, 4, rows[1].Line)
}
