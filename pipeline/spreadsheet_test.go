package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/docread/document"
)

func TestMarkdownTable(t *testing.T) {
	got := markdownTable([][]string{
		{"name", "qty"},
		{"apples", "3"},
		{"pipes | here", "1"},
	})
	want := "| name | qty |\n" +
		"|---|---|\n" +
		"| apples | 3 |\n" +
		"| pipes \\| here | 1 |"
	if got != want {
		t.Errorf("table =\n%s\nwant\n%s", got, want)
	}
}

func TestMarkdownTableRaggedRows(t *testing.T) {
	got := markdownTable([][]string{{"a"}, {"1", "2"}})
	if !strings.Contains(got, "| a |  |") {
		t.Errorf("short rows should pad to the widest row:\n%s", got)
	}
}

func TestExtractCSVOriginalMode(t *testing.T) {
	a := document.DataArtifact("t.csv", "text/csv", []byte("a,b\n1,2\n"))
	e := &SpreadsheetExtractor{}
	extracted, err := e.Extract(context.Background(), a, document.ExtractOptions{Original: true})
	if err != nil {
		t.Fatal(err)
	}
	if extracted.Mode != document.FragmentData {
		t.Errorf("mode = %q", extracted.Mode)
	}
	if extracted.Text != "a,b\n1,2\n" {
		t.Errorf("text = %q", extracted.Text)
	}
}

func TestExtractCSVMalformedFallsBackToRaw(t *testing.T) {
	raw := "not,really\n\"unterminated"
	a := document.DataArtifact("t.csv", "text/csv", []byte(raw))
	e := &SpreadsheetExtractor{}
	extracted, err := e.Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if extracted.Mode != document.FragmentData || extracted.Text != raw {
		t.Errorf("extracted = %+v", extracted)
	}
}

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeXLSX(t *testing.T, sheets map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)

	names := make([]string, 0, len(sheets))
	for name := range sheets {
		names = append(names, name)
	}

	var workbook strings.Builder
	workbook.WriteString(`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	var rels strings.Builder
	rels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, name := range names {
		workbook.WriteString(`<sheet name="` + name + `" sheetId="1" r:id="rId` + string(rune('1'+i)) + `"/>`)
		rels.WriteString(`<Relationship Id="rId` + string(rune('1'+i)) + `" Type="worksheet" Target="worksheets/sheet` + string(rune('1'+i)) + `.xml"/>`)
	}
	workbook.WriteString(`</sheets></workbook>`)
	rels.WriteString(`</Relationships>`)

	write := func(name, content string) {
		zw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := zw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	write("xl/workbook.xml", workbook.String())
	write("xl/_rels/workbook.xml.rels", rels.String())
	write("xl/sharedStrings.xml",
		`<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>name</t></si><si><t>count</t></si><si><t>widget</t></si></sst>`)
	for i, name := range names {
		write("xl/worksheets/sheet"+string(rune('1'+i))+".xml", sheets[name])
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const sheetXML = `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
	`<row><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>` +
	`<row><c r="A2" t="s"><v>2</v></c><c r="B2"><v>7</v></c></row>` +
	`</sheetData></worksheet>`

func TestExtractXLSX(t *testing.T) {
	path := writeXLSX(t, map[string]string{"Inventory": sheetXML})
	a := document.FileArtifact("book.xlsx", xlsxMime, path)

	e := &SpreadsheetExtractor{}
	extracted, err := e.Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := "| name | count |\n|---|---|\n| widget | 7 |"
	if extracted.Text != want {
		t.Errorf("text =\n%s\nwant\n%s", extracted.Text, want)
	}
	// Single sheet: no section heading.
	if strings.Contains(extracted.Text, "## ") {
		t.Error("single-sheet workbooks must not emit section headings")
	}
}

func TestExtractXLSXMultiSheet(t *testing.T) {
	path := writeXLSX(t, map[string]string{"A1sheet": sheetXML, "B2sheet": sheetXML})
	a := document.FileArtifact("book.xlsx", xlsxMime, path)

	e := &SpreadsheetExtractor{}
	extracted, err := e.Extract(context.Background(), a, document.ExtractOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, heading := range []string{"## A1sheet", "## B2sheet"} {
		if !strings.Contains(extracted.Text, heading) {
			t.Errorf("missing %q in:\n%s", heading, extracted.Text)
		}
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		ref  string
		want int
	}{
		{"A1", 0}, {"B12", 1}, {"Z3", 25}, {"AA1", 26}, {"", 0},
	}
	for _, tt := range tests {
		if got := columnIndex(tt.ref); got != tt.want {
			t.Errorf("columnIndex(%q) = %d, want %d", tt.ref, got, tt.want)
		}
	}
}
