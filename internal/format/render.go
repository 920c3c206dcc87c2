package format

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func renderJSON(raw string, out *Output) {
	kind, v := Classify(raw)
	var doc interface{}
	if kind == KindText {
		// Non-parseable input is wrapped rather than rejected.
		doc = &OrderedMap{Keys: []string{"output"}, Values: map[string]interface{}{"output": raw}}
	} else {
		doc = v
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		out.Content = raw
		out.Error = fmt.Sprintf("json rendering failed: %v", err)
		return
	}
	out.Content = string(data)
}

func renderXML(raw string, out *Output) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "<") && wellFormedXML(trimmed) {
		out.Content = trimmed
		return
	}
	var b strings.Builder
	b.WriteString("<output><content>")
	if err := xml.EscapeText(&b, []byte(raw)); err != nil {
		out.Content = raw
		out.Error = fmt.Sprintf("xml rendering failed: %v", err)
		return
	}
	b.WriteString("</content></output>")
	out.Content = b.String()
}

func wellFormedXML(s string) bool {
	decoder := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}

func renderYAML(raw string, out *Output) {
	kind, v := Classify(raw)
	var doc interface{}
	if kind == KindText {
		doc = map[string]string{"output": raw}
	} else {
		doc = plainValue(v)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		out.Content = raw
		out.Error = fmt.Sprintf("yaml rendering failed: %v", err)
		return
	}
	out.Content = strings.TrimRight(string(data), "\n")
}

// tableData shapes classified output into header and data rows. Maps become
// a single row, lists of maps become one row per element with the first
// row's key order fixing the columns, and bare scalars degrade to a single
// labeled cell.
func tableData(raw string) (headers []string, rows [][]string) {
	kind, v := Classify(raw)
	if kind == KindText {
		return []string{"value"}, [][]string{{raw}}
	}

	switch val := v.(type) {
	case *OrderedMap:
		headers = val.Keys
		row := make([]string, len(headers))
		for i, k := range headers {
			row[i] = cellString(val.Values[k])
		}
		return headers, [][]string{row}
	case []interface{}:
		maps := make([]*OrderedMap, 0, len(val))
		for _, item := range val {
			m, ok := item.(*OrderedMap)
			if !ok {
				maps = nil
				break
			}
			maps = append(maps, m)
		}
		if len(maps) > 0 {
			headers = maps[0].Keys
			for _, m := range maps {
				row := make([]string, len(headers))
				for i, k := range headers {
					row[i] = cellString(m.Values[k])
				}
				rows = append(rows, row)
			}
			return headers, rows
		}
		headers = []string{"value"}
		for _, item := range val {
			rows = append(rows, []string{cellString(item)})
		}
		return headers, rows
	default:
		return []string{"value"}, [][]string{{cellString(val)}}
	}
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case *OrderedMap, []interface{}:
		data, err := json.Marshal(plainValue(val))
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func renderTable(raw string, out *Output) {
	headers, rows := tableData(raw)
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		b.WriteString("\n")
	}
	writeRow(headers)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}

	out.Content = strings.TrimRight(b.String(), "\n")
	out.IsTabular = true
}

func renderCSV(raw string, out *Output) {
	headers, rows := tableData(raw)
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(headers); err != nil {
		out.Content = raw
		out.Error = fmt.Sprintf("csv rendering failed: %v", err)
		return
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			out.Content = raw
			out.Error = fmt.Sprintf("csv rendering failed: %v", err)
			return
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		out.Content = raw
		out.Error = fmt.Sprintf("csv rendering failed: %v", err)
		return
	}
	out.Content = strings.TrimRight(b.String(), "\n")
	out.IsTabular = true
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
)

func renderMarkdown(raw string, out *Output) {
	headers, rows := tableData(raw)
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, cell := range cells {
			b.WriteString(" ")
			b.WriteString(markdownEscaper.Replace(cell))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(headers)
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}

	out.Content = strings.TrimRight(b.String(), "\n")
	out.IsTabular = true
}
