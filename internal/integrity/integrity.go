// Package integrity implements the read-only store-file checker: format
// detection, structural validation, and backup discovery for a session
// store file. It follows a build-findings-then-report shape, adapted from
// a session-liveness report to a file-format/corruption report.
package integrity

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sessionforge/sessionctl/internal/obslog"
)

// Format is a recognized store-file format.
type Format string

const (
	FormatUnknown     Format = "unknown"
	FormatEmpty       Format = "empty"
	FormatJSON        Format = "json"
	FormatEmbeddedSQL Format = "sqlite"
)

// ActionKind classifies a suggested remediation.
type ActionKind string

const (
	ActionMigrate ActionKind = "migrate"
	ActionRestore ActionKind = "restore"
	ActionRepair  ActionKind = "repair"
	ActionCreate  ActionKind = "create"
	ActionWarning ActionKind = "warning"
)

// SuggestedAction is one remediation the caller may take.
type SuggestedAction struct {
	Kind           ActionKind
	Description    string
	Command        string // optional, executable
	Priority       int    // lower runs first
	AutoExecutable bool
}

// BackupCandidate is a file that looks like a backup of the store.
type BackupCandidate struct {
	Path       string
	Format     Format
	ModifiedAt time.Time
}

// Report is the structured outcome of Check. It is never mutated by Check
// itself — the checker performs no writes.
type Report struct {
	IsValid          bool
	ActualFormat     Format
	Issues           []string
	Warnings         []string
	BackupsFound     []BackupCandidate
	SuggestedActions []SuggestedAction
}

// backupNamePattern matches `<base>.bak`, `<base>.bak.<timestamp>`, and
// `<base>.<timestamp>.bak` alongside a store file named <base>.
var backupNamePattern = regexp.MustCompile(`\.bak(\.[0-9TZ:-]+)?$|\.[0-9TZ:-]+\.bak$`)

// Check inspects filePath against expectedFormat and returns a read-only
// diagnostic report. It never modifies filePath or anything under its
// directory.
func Check(ctx context.Context, expectedFormat Format, filePath string) Report {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkMissing(expectedFormat, filePath)
		}
		return Report{
			ActualFormat: FormatUnknown,
			Issues:       []string{fmt.Sprintf("cannot stat %s: %v", filePath, err)},
		}
	}
	if info.IsDir() {
		return Report{
			ActualFormat: FormatUnknown,
			Issues:       []string{fmt.Sprintf("%s is a directory, not a file", filePath)},
		}
	}

	actual, detectErr := detectFormat(filePath)
	report := Report{ActualFormat: actual}
	if detectErr != nil {
		report.Issues = append(report.Issues, detectErr.Error())
	}

	if actual != expectedFormat && actual != FormatUnknown {
		report.Issues = append(report.Issues, fmt.Sprintf("expected format %s, found %s", expectedFormat, actual))
		report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
			Kind:        ActionMigrate,
			Description: fmt.Sprintf("migrate %s from %s to %s", filePath, actual, expectedFormat),
			Priority:    10,
		})
	}

	switch actual {
	case FormatEmbeddedSQL:
		validateSQLite(ctx, filePath, &report)
	case FormatJSON:
		validateJSON(filePath, &report)
	case FormatUnknown:
		report.Issues = append(report.Issues, fmt.Sprintf("%s does not look like JSON or an embedded-SQL file", filePath))
	}

	report.IsValid = len(report.Issues) == 0
	if !report.IsValid {
		obslog.Warn(ctx, "store integrity check found issues", "path", filePath, "issues", len(report.Issues))
	}
	return report
}

func checkMissing(expectedFormat Format, filePath string) Report {
	report := Report{ActualFormat: FormatEmpty}
	backups := scanForBackups(filePath)
	report.BackupsFound = backups

	if len(backups) > 0 {
		report.IsValid = false
		report.Issues = append(report.Issues, fmt.Sprintf("%s does not exist", filePath))
		for i, b := range backups {
			report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
				Kind:        ActionRestore,
				Description: fmt.Sprintf("restore from %s", b.Path),
				Priority:    i,
			})
		}
		return report
	}

	report.IsValid = true
	report.Warnings = append(report.Warnings, fmt.Sprintf("%s does not exist; a new %s store will be created on first write", filePath, expectedFormat))
	report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
		Kind:           ActionCreate,
		Description:    fmt.Sprintf("initialize a new %s store at %s", expectedFormat, filePath),
		Priority:       0,
		AutoExecutable: true,
	})
	return report
}

// scanForBackups looks in filePath's own directory and a sibling backups/
// directory for files matching a known backup naming pattern.
func scanForBackups(filePath string) []BackupCandidate {
	dir := filepath.Dir(filePath)

	var candidates []BackupCandidate
	scan := func(d string) {
		entries, err := os.ReadDir(d)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if !backupNamePattern.MatchString(name) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(d, name)
			fmtKind := FormatUnknown
			if f, err := detectFormat(path); err == nil {
				fmtKind = f
			}
			candidates = append(candidates, BackupCandidate{Path: path, Format: fmtKind, ModifiedAt: info.ModTime()})
		}
	}

	scan(dir)
	scan(filepath.Join(dir, "backups"))

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModifiedAt.After(candidates[j].ModifiedAt)
	})
	return candidates
}

// sqliteMagic is the 16-byte header every SQLite database file starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// detectFormat sniffs filePath's content: embedded-SQL magic header, a
// leading JSON '{' or '[', or unknown.
func detectFormat(filePath string) (Format, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, 16)
	n, err := f.Read(head)
	if n == 0 {
		if err != nil && err != io.EOF {
			return FormatUnknown, err
		}
		return FormatEmpty, nil
	}
	head = head[:n]

	if len(head) >= 16 && bytes.Equal(head, sqliteMagic) {
		return FormatEmbeddedSQL, nil
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON, nil
	}

	return FormatUnknown, nil
}

func validateSQLite(ctx context.Context, filePath string, report *Report) {
	db, err := sql.Open("sqlite3", filePath+"?mode=ro")
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("cannot open sqlite file: %v", err))
		return
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("integrity_check query failed: %v", err))
		report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
			Kind:        ActionRepair,
			Description: "database file is unreadable; restore from backup",
			Priority:    1,
		})
		return
	}
	if result != "ok" {
		report.Issues = append(report.Issues, fmt.Sprintf("PRAGMA integrity_check reported: %s", result))
		report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
			Kind:        ActionRepair,
			Description: "database failed integrity_check; restore from backup",
			Priority:    1,
		})
	}

	var tableName string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='sessions'").Scan(&tableName)
	if err != nil {
		report.Issues = append(report.Issues, "sessions table is missing")
		report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
			Kind:        ActionRepair,
			Description: "recreate the sessions table",
			Priority:    2,
		})
	}
}

func validateJSON(filePath string, report *Report) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("cannot read file: %v", err))
		return
	}

	// Accept both the legacy bare-array form and the current object form.
	var asObject struct {
		Sessions json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(data, &asObject); err == nil && asObject.Sessions != nil {
		var arr []json.RawMessage
		if err := json.Unmarshal(asObject.Sessions, &arr); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("sessions field is not an array: %v", err))
		}
		return
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(data, &asArray); err == nil {
		report.Warnings = append(report.Warnings, "file uses the legacy bare-array form")
		return
	}

	report.Issues = append(report.Issues, "file is not valid JSON, or matches neither the object nor legacy array form")
	report.SuggestedActions = append(report.SuggestedActions, SuggestedAction{
		Kind:        ActionRepair,
		Description: "file is not parseable JSON; restore from backup",
		Priority:    1,
	})
}
