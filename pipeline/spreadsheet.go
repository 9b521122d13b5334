package pipeline

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hazyhaar/docread/document"
)

// SpreadsheetExtractor renders CSV and XLSX files as GitHub-style markdown
// tables. In passthrough mode rows come back as CSV instead. Workbooks
// with several sheets get one "## sheet" section per sheet.
type SpreadsheetExtractor struct{}

func (e *SpreadsheetExtractor) Match(a *document.Artifact, opts document.ExtractOptions) bool {
	return document.Mode(a.Mime) == document.ModeSpreadsheet
}

func (e *SpreadsheetExtractor) Extract(ctx context.Context, a *document.Artifact, opts document.ExtractOptions) (*document.Extracted, error) {
	mode := document.FragmentMarkdown
	if opts.Original {
		mode = document.FragmentData
	}

	var text string
	var err error
	if a.Mime == "text/csv" {
		mode, text, err = extractCSV(a, mode)
	} else {
		text, err = extractXLSX(a, mode)
	}
	if err != nil {
		return nil, err
	}

	return &document.Extracted{
		Mime: a.Mime,
		Mode: mode,
		Text: text,
	}, nil
}

func extractCSV(a *document.Artifact, mode document.FragmentMode) (document.FragmentMode, string, error) {
	r, err := a.Open()
	if err != nil {
		return mode, "", document.ErrExtractUnexpected(err)
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		// Not really CSV; hand the raw content back.
		raw, rerr := a.Bytes()
		if rerr != nil {
			return mode, "", document.ErrExtractUnexpected(rerr)
		}
		return document.FragmentData, string(raw), nil
	}

	if mode == document.FragmentData {
		var sb strings.Builder
		w := csv.NewWriter(&sb)
		if err := w.WriteAll(rows); err != nil {
			return mode, "", document.ErrExtractFailed("spreadsheet", err.Error())
		}
		return mode, sb.String(), nil
	}
	return mode, markdownTable(rows), nil
}

// markdownTable renders rows as a GitHub pipe table; the first row is the
// header.
func markdownTable(rows [][]string) string {
	columns := 0
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	if columns == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < columns; i++ {
			cell := ""
			if i < len(row) {
				cell = strings.ReplaceAll(row[i], "|", "\\|")
				cell = strings.ReplaceAll(cell, "\n", " ")
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < columns; i++ {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

//
// XLSX
//

type xlsxWorkbook struct {
	Sheets struct {
		Sheet []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type xlsxRels struct {
	Relationship []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type xlsxSharedStrings struct {
	SI []struct {
		T string   `xml:"t"`
		R []string `xml:"r>t"`
	} `xml:"si"`
}

type xlsxSheet struct {
	SheetData struct {
		Row []struct {
			C []struct {
				R  string `xml:"r,attr"`
				T  string `xml:"t,attr"`
				V  string `xml:"v"`
				IS struct {
					T string `xml:"t"`
				} `xml:"is"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

func extractXLSX(a *document.Artifact, mode document.FragmentMode) (string, error) {
	src, done, err := a.File("")
	if err != nil {
		return "", document.ErrExtractUnexpected(err)
	}
	defer done()

	r, err := zip.OpenReader(src)
	if err != nil {
		return "", document.ErrExtractFailed("spreadsheet", fmt.Sprintf("open xlsx: %v", err))
	}
	defer r.Close()

	var workbook xlsxWorkbook
	if err := unmarshalZipXML(&r.Reader, "xl/workbook.xml", &workbook); err != nil {
		return "", document.ErrExtractFailed("spreadsheet", err.Error())
	}
	var rels xlsxRels
	if err := unmarshalZipXML(&r.Reader, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return "", document.ErrExtractFailed("spreadsheet", err.Error())
	}
	targetByRID := map[string]string{}
	for _, rel := range rels.Relationship {
		targetByRID[rel.ID] = "xl/" + strings.TrimPrefix(rel.Target, "/xl/")
	}

	var shared xlsxSharedStrings
	// Optional: workbooks without string cells have no sharedStrings part.
	_ = unmarshalZipXML(&r.Reader, "xl/sharedStrings.xml", &shared)
	strs := make([]string, len(shared.SI))
	for i, si := range shared.SI {
		if si.T != "" {
			strs[i] = si.T
		} else {
			strs[i] = strings.Join(si.R, "")
		}
	}

	sections := make([]string, 0, len(workbook.Sheets.Sheet))
	names := make([]string, 0, len(workbook.Sheets.Sheet))
	for _, meta := range workbook.Sheets.Sheet {
		target, ok := targetByRID[meta.RID]
		if !ok {
			continue
		}
		var sheet xlsxSheet
		if err := unmarshalZipXML(&r.Reader, target, &sheet); err != nil {
			return "", document.ErrExtractFailed("spreadsheet", err.Error())
		}
		rows := sheetRows(&sheet, strs)
		var text string
		if mode == document.FragmentData {
			var sb strings.Builder
			w := csv.NewWriter(&sb)
			if err := w.WriteAll(rows); err != nil {
				return "", document.ErrExtractFailed("spreadsheet", err.Error())
			}
			text = sb.String()
		} else {
			text = markdownTable(rows)
		}
		sections = append(sections, text)
		names = append(names, meta.Name)
	}

	if len(sections) == 1 {
		return sections[0], nil
	}
	parts := make([]string, len(sections))
	for i := range sections {
		parts[i] = fmt.Sprintf("## %s\n\n%s", names[i], sections[i])
	}
	return strings.Join(parts, "\n\n"), nil
}

func unmarshalZipXML(r *zip.Reader, name string, v any) error {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := xml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("%s not found in archive", name)
}

// sheetRows flattens a worksheet into a rectangular string grid, resolving
// shared strings and leaving skipped cells empty.
func sheetRows(sheet *xlsxSheet, shared []string) [][]string {
	rows := make([][]string, 0, len(sheet.SheetData.Row))
	for _, row := range sheet.SheetData.Row {
		var cells []string
		for _, c := range row.C {
			col := columnIndex(c.R)
			for len(cells) < col {
				cells = append(cells, "")
			}

			var value string
			switch c.T {
			case "s":
				if idx, err := strconv.Atoi(c.V); err == nil && idx >= 0 && idx < len(shared) {
					value = shared[idx]
				}
			case "inlineStr":
				value = c.IS.T
			default:
				value = c.V
			}
			cells = append(cells, value)
		}
		rows = append(rows, cells)
	}
	return rows
}

// columnIndex parses the column letters of a cell reference like "BC12".
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A') + 1
	}
	if col == 0 {
		return 0
	}
	return col - 1
}
