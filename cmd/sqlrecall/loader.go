package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/poiesic/sqlrecall/core"
)

// fileType is the training format a file is routed to, chosen by name.
type fileType int

const (
	fileUnknown fileType = iota
	fileDDL
	fileDocumentation
	fileJSONPairs
	fileSQLPairs
	fileSQLExamples
	fileTextPlan
)

func (t fileType) String() string {
	switch t {
	case fileDDL:
		return "ddl"
	case fileDocumentation:
		return "documentation"
	case fileJSONPairs:
		return "json pairs"
	case fileSQLPairs:
		return "formatted pairs"
	case fileSQLExamples:
		return "sql examples"
	case fileTextPlan:
		return "text plan"
	default:
		return "unknown"
	}
}

// headingLine matches markdown headings of level one to three.
var headingLine = regexp.MustCompile(`^#{1,3}[^#]`)

// entry is one unit of training material. SQL entries have no question yet;
// the chat backend supplies it during training.
type entry struct {
	item core.TrainingItem
	sql  string
}

func (e entry) needsQuestion() bool {
	return e.sql != ""
}

// fileReport summarises what was read from one file.
type fileReport struct {
	Path    string
	Type    fileType
	Entries int
	Skipped int
	Err     error
}

func classifyFile(name string) fileType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".ddl"):
		return fileDDL
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return fileDocumentation
	case strings.HasSuffix(lower, "_pair.json"), strings.HasSuffix(lower, "_pairs.json"):
		return fileJSONPairs
	case strings.HasSuffix(lower, "_sql_pair.sql"), strings.HasSuffix(lower, "_sql_pairs.sql"):
		return fileSQLPairs
	case strings.HasSuffix(lower, ".sql"):
		return fileSQLExamples
	case strings.HasSuffix(lower, ".txt"):
		return fileTextPlan
	default:
		return fileUnknown
	}
}

// loadDir walks root recursively and parses every recognised file. A file
// that cannot be parsed is reported and skipped; it never stops the walk.
func loadDir(root string) ([]entry, []fileReport, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("training data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("training data path is not a directory: %s", root)
	}

	var entries []entry
	var reports []fileReport
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		kind := classifyFile(d.Name())
		if kind == fileUnknown {
			return nil
		}

		report := fileReport{Path: path, Type: kind}
		found, skipped, err := loadFile(path, kind)
		report.Entries = len(found)
		report.Skipped = skipped
		report.Err = err
		if err != nil {
			slog.Warn("skipping training file", "path", path, "err", err)
		} else {
			slog.Debug("read training file", "path", path, "type", kind, "entries", len(found), "skipped", skipped)
			entries = append(entries, found...)
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, reports, nil
}

func loadFile(path string, kind fileType) ([]entry, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	content := string(data)

	switch kind {
	case fileDDL:
		return itemsOf(splitByDelimiter(content, ";"), core.NewDDL), 0, nil
	case fileDocumentation:
		return itemsOf(splitMarkdownSections(content), core.NewDocumentation), 0, nil
	case fileJSONPairs:
		return parseJSONPairs(data)
	case fileSQLPairs:
		entries, skipped := parseFormattedPairs(content)
		return entries, skipped, nil
	case fileSQLExamples:
		var entries []entry
		for _, sql := range splitByDelimiter(content, ";") {
			entries = append(entries, entry{sql: sql})
		}
		return entries, 0, nil
	case fileTextPlan:
		return parseTextPlan(filepath.Base(path), content)
	default:
		return nil, 0, fmt.Errorf("unsupported training file: %s", path)
	}
}

// parseTextPlan trains a whole .txt file as one item: DDL when the file name
// mentions ddl, documentation otherwise. An empty file counts as skipped.
func parseTextPlan(name, content string) ([]entry, int, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, 1, nil
	}
	if strings.Contains(strings.ToLower(name), "ddl") {
		return []entry{{item: core.NewDDL(content)}}, 0, nil
	}
	return []entry{{item: core.NewDocumentation(content)}}, 0, nil
}

func itemsOf(blocks []string, fn func(string) core.TrainingItem) []entry {
	entries := make([]entry, 0, len(blocks))
	for _, block := range blocks {
		entries = append(entries, entry{item: fn(block)})
	}
	return entries
}

// splitByDelimiter cuts content on delim and drops blank blocks.
func splitByDelimiter(content, delim string) []string {
	var blocks []string
	for _, block := range strings.Split(content, delim) {
		if block = strings.TrimSpace(block); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// splitMarkdownSections starts a new section at every heading of level one to
// three. Text before the first heading is its own section; content without
// headings is returned whole.
func splitMarkdownSections(content string) []string {
	var sections []string
	var current strings.Builder
	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if headingLine.MatchString(line) {
			emit()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	emit()
	return sections
}

type jsonPair struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// parseJSONPairs reads a list of {"question", "sql"} objects. Pairs with an
// empty side are skipped.
func parseJSONPairs(data []byte) ([]entry, int, error) {
	var pairs []jsonPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, 0, fmt.Errorf("expected a JSON list of question/sql pairs: %w", err)
	}

	var entries []entry
	skipped := 0
	for _, p := range pairs {
		question, sql := strings.TrimSpace(p.Question), strings.TrimSpace(p.SQL)
		if question == "" || sql == "" {
			skipped++
			continue
		}
		entries = append(entries, entry{item: core.NewQuestionSQL(question, sql)})
	}
	return entries, skipped, nil
}

const (
	questionMarker = "Question:"
	sqlMarker      = "SQL:"
)

// parseFormattedPairs reads blocks of the form
//
//	Question: ...
//	SQL: ...
//
// separated by a blank line. The SQL may span several lines.
func parseFormattedPairs(content string) ([]entry, int) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(content, "\n\n"+questionMarker)

	var raw []string
	if first := blocks[0]; strings.Contains(first, questionMarker) {
		raw = append(raw, strings.TrimSpace(first[strings.Index(first, questionMarker):]))
	}
	for _, block := range blocks[1:] {
		raw = append(raw, questionMarker+strings.TrimSpace(block))
	}

	var entries []entry
	skipped := 0
	for _, pair := range raw {
		qStart := strings.Index(pair, questionMarker) + len(questionMarker)
		sqlIdx := strings.Index(pair[qStart:], sqlMarker)
		if sqlIdx < 0 {
			skipped++
			continue
		}
		sqlIdx += qStart

		question := strings.TrimSpace(pair[qStart:sqlIdx])
		sql := pair[sqlIdx+len(sqlMarker):]
		if next := strings.Index(sql, questionMarker); next >= 0 {
			sql = sql[:next]
		}
		sql = strings.TrimSpace(sql)

		if question == "" || sql == "" {
			skipped++
			continue
		}
		entries = append(entries, entry{item: core.NewQuestionSQL(question, sql)})
	}
	return entries, skipped
}
