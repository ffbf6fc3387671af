package lexical

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Flatten converts a serialized block payload into plain markdown-ish
// text suitable for inclusion in a model prompt. Content that is not a
// block tree (plain text blocks, legacy payloads) is returned as-is.
func Flatten(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, `{"root":`) {
		return content
	}

	var root BlockRoot
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		// Fallback to original content if parsing fails
		return content
	}

	var sb strings.Builder
	walk(root.Root, &sb, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func walk(node Node, sb *strings.Builder, depth int) {
	switch node.Type {
	case "root":
		for _, child := range node.Children {
			walk(child, sb, depth)
			sb.WriteString("\n")
		}

	case "heading":
		level := 1
		if len(node.Tag) == 2 && node.Tag[0] == 'h' {
			level = int(node.Tag[1] - '0')
		}
		if level < 1 || level > 6 {
			level = 1
		}
		sb.WriteString(strings.Repeat("#", level) + " ")
		for _, child := range node.Children {
			walk(child, sb, depth)
		}
		sb.WriteString("\n")

	case "paragraph":
		for _, child := range node.Children {
			walk(child, sb, depth)
		}
		sb.WriteString("\n")

	case "text":
		writeText(node, sb)

	case "list":
		writeList(node, sb, depth)

	case "link":
		sb.WriteString("[")
		for _, child := range node.Children {
			walk(child, sb, depth)
		}
		sb.WriteString(fmt.Sprintf("](%s)", node.URL))

	case "code":
		sb.WriteString("```" + node.Language + "\n")
		for _, child := range node.Children {
			walk(child, sb, depth)
		}
		sb.WriteString("\n```\n")

	case "table":
		writeTable(node, sb)

	case "horizontalrule":
		sb.WriteString("---\n")

	default:
		// Generic recursion for unknown containers
		for _, child := range node.Children {
			walk(child, sb, depth)
		}
	}
}

func writeText(node Node, sb *strings.Builder) {
	fmtInt := 0
	switch f := node.Format.(type) {
	case float64:
		fmtInt = int(f)
	case int:
		fmtInt = f
	}

	var open, close string
	if fmtInt&FormatCode != 0 {
		open, close = "`", "`"
	} else {
		if fmtInt&FormatBold != 0 {
			open += "**"
			close = "**" + close
		}
		if fmtInt&FormatItalic != 0 {
			open += "_"
			close = "_" + close
		}
		if fmtInt&FormatStrikethrough != 0 {
			open += "~~"
			close = "~~" + close
		}
	}

	sb.WriteString(open)
	sb.WriteString(node.Text)
	sb.WriteString(close)
}

func writeList(node Node, sb *strings.Builder, depth int) {
	index := 1
	if node.Start > 0 {
		index = node.Start
	}

	for _, item := range node.Children {
		if item.Type != "listitem" {
			continue
		}
		sb.WriteString(strings.Repeat("  ", depth))

		switch node.ListType {
		case "number":
			sb.WriteString(fmt.Sprintf("%d. ", index))
			index++
		case "check":
			if item.Checked {
				sb.WriteString("- [x] ")
			} else {
				sb.WriteString("- [ ] ")
			}
		default:
			sb.WriteString("- ")
		}

		for _, child := range item.Children {
			if child.Type == "list" {
				sb.WriteString("\n")
				writeList(child, sb, depth+1)
			} else {
				walk(child, sb, depth)
			}
		}
		sb.WriteString("\n")
	}
}

func writeTable(node Node, sb *strings.Builder) {
	var rows [][]string
	maxCols := 0

	for _, row := range node.Children {
		if row.Type != "tablerow" {
			continue
		}
		var rowData []string
		for _, cell := range row.Children {
			var cellSb strings.Builder
			for _, content := range cell.Children {
				walk(content, &cellSb, 0)
			}
			rowData = append(rowData, strings.ReplaceAll(strings.TrimSpace(cellSb.String()), "\n", " "))
		}
		rows = append(rows, rowData)
		if len(rowData) > maxCols {
			maxCols = len(rowData)
		}
	}

	if len(rows) == 0 || maxCols == 0 {
		return
	}

	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < maxCols; i++ {
			if i < len(row) {
				sb.WriteString(" " + row[i] + " |")
			} else {
				sb.WriteString("  |")
			}
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|" + strings.Repeat("---|", maxCols) + "\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	sb.WriteString("\n")
}
