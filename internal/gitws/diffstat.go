package gitws

import (
	"strconv"
	"strings"

	"github.com/calder/worldmind/internal/models"
)

// ParseDiffStat parses `git diff --stat --summary` output into file-change
// records. Stat lines carry the path and line count; summary lines
// ("create mode", "delete mode") refine the action, which defaults to
// modified.
//
// Example input:
//
//	 src/health.go           | 25 +++++++++++++++
//	 src/router.go           |  3 +-
//	 2 files changed, 26 insertions(+), 2 deletions(-)
//	 create mode 100644 src/health.go
func ParseDiffStat(output string) []models.FileChange {
	var changes []models.FileChange
	index := make(map[string]int)

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "create mode "):
			if path := pathFromSummary(trimmed, "create mode "); path != "" {
				setAction(changes, index, path, models.FileCreated)
			}
		case strings.HasPrefix(trimmed, "delete mode "):
			if path := pathFromSummary(trimmed, "delete mode "); path != "" {
				setAction(changes, index, path, models.FileDeleted)
			}
		case strings.Contains(trimmed, "|"):
			path, lines, ok := parseStatLine(trimmed)
			if !ok {
				continue
			}
			index[path] = len(changes)
			changes = append(changes, models.FileChange{
				Path:         path,
				Action:       models.FileModified,
				LinesChanged: lines,
			})
		}
	}
	return changes
}

// parseStatLine splits one "<path> | <n> +-" stat line. Returns ok=false
// for the trailing "N files changed" summary and other non-stat lines.
func parseStatLine(line string) (string, int, bool) {
	idx := strings.LastIndex(line, "|")
	if idx < 0 {
		return "", 0, false
	}
	path := strings.TrimSpace(line[:idx])
	rest := strings.TrimSpace(line[idx+1:])
	if path == "" || rest == "" {
		return "", 0, false
	}

	// Rename stat lines look like "old => new"; the new path is the one
	// that exists after the diff.
	if arrow := strings.LastIndex(path, "=>"); arrow >= 0 {
		path = strings.TrimSpace(path[arrow+2:])
		path = strings.TrimSuffix(path, "}")
	}

	// Binary files: "Bin 0 -> 1234 bytes" carries no line count.
	if strings.HasPrefix(rest, "Bin") {
		return path, 0, true
	}

	fields := strings.Fields(rest)
	lines, err := strconv.Atoi(fields[0])
	if err != nil || lines < 0 {
		return "", 0, false
	}
	return path, lines, true
}

func pathFromSummary(line, prefix string) string {
	rest := strings.TrimPrefix(line, prefix)
	// "100644 path/to/file"
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) != 2 {
		return ""
	}
	return strings.TrimSpace(fields[1])
}

func setAction(changes []models.FileChange, index map[string]int, path string, action models.FileChangeAction) {
	if i, ok := index[path]; ok {
		changes[i].Action = action
	}
}

// FormatDiffStat renders file changes back into the stat+summary form
// ParseDiffStat consumes. Used by tests and by the remote provider when it
// synthesises a result from branch contents.
func FormatDiffStat(changes []models.FileChange) string {
	var sb strings.Builder
	for _, c := range changes {
		sb.WriteString(" ")
		sb.WriteString(c.Path)
		sb.WriteString(" | ")
		sb.WriteString(strconv.Itoa(c.LinesChanged))
		if c.LinesChanged > 0 {
			sb.WriteString(" ")
			sb.WriteString(strings.Repeat("+", min(c.LinesChanged, 10)))
		}
		sb.WriteString("\n")
	}
	for _, c := range changes {
		switch c.Action {
		case models.FileCreated:
			sb.WriteString(" create mode 100644 " + c.Path + "\n")
		case models.FileDeleted:
			sb.WriteString(" delete mode 100644 " + c.Path + "\n")
		}
	}
	return sb.String()
}
