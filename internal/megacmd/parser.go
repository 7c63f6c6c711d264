package megacmd

import (
	"regexp"
	"strconv"
	"strings"

	"mega-get-server/internal/domain"
)

// Filenames longer than maxFilenameLen runes are shortened with an ellipsis.
const maxFilenameLen = 60

// headerKeywords identify a mega-transfers column header line. A line is a
// header only when it contains all of them.
var headerKeywords = []string{"TYPE", "TAG", "STATE"}

var (
	// Simplified listing, as emitted in simulate mode:
	//   "1         ACTIVE    12%       /data/sample_file.zip"
	simpleLineRe = regexp.MustCompile(`^\s*(\d+)\s+(\w+)\s+(\d+)%\s+(.+)$`)

	// Native mega-transfers listing:
	//   "⇓    76  /path/to/file.mkv  5.42% of  455.34 MB ACTIVE"
	// The direction glyph varies between MEGAcmd builds (⇓/⇑ or ↓/↑).
	nativeLineRe = regexp.MustCompile(`[⇓↓⇑↑]\s+(\d+)\s+(.*?)\s+(\d+(?:\.\d+)?)\s*%\s+of\s+([\d.]+)\s*([KMGT]?B)\s+(\w+)\s*$`)
)

// ParseTransfers converts raw mega-transfers console output into transfer
// records. It is pure and total: header lines and anything matching neither
// grammar are dropped, never reported as errors, and identical input always
// yields identical output.
func ParseTransfers(raw string) []domain.Transfer {
	var result []domain.Transfer
	if strings.TrimSpace(raw) == "" {
		return result
	}

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isHeaderLine(line) {
			continue
		}

		if m := simpleLineRe.FindStringSubmatch(line); m != nil {
			pct, _ := strconv.ParseFloat(m[3], 64)
			path := strings.TrimSpace(m[4])
			result = append(result, domain.Transfer{
				Tag:             m[1],
				State:           domain.TransferState(m[2]),
				ProgressPercent: pct,
				Path:            path,
				Filename:        displayFilename(path),
				SizeDisplay:     "Unknown",
			})
			continue
		}

		if m := nativeLineRe.FindStringSubmatch(line); m != nil {
			pct, _ := strconv.ParseFloat(m[3], 64)
			path := strings.TrimSpace(m[2])
			filename := displayFilename(path)
			if filename == "" {
				filename = "Unknown"
			}
			result = append(result, domain.Transfer{
				Tag:             m[1],
				State:           domain.TransferState(m[6]),
				ProgressPercent: pct,
				Path:            path,
				Filename:        filename,
				SizeDisplay:     m[4] + " " + m[5],
			})
			continue
		}
		// Neither grammar: discard.
	}

	return result
}

func isHeaderLine(line string) bool {
	for _, kw := range headerKeywords {
		if !strings.Contains(line, kw) {
			return false
		}
	}
	return true
}

// displayFilename derives the filename shown in the UI from a listing path.
// mega-transfers middle-truncates long paths with "...", in which case only
// the text after the last marker still names the file. Known limitation: a
// path containing a literal "..." is indistinguishable from a truncated one.
func displayFilename(path string) string {
	name := path
	if strings.Contains(path, "/") {
		name = path[strings.LastIndex(path, "/")+1:]
	}

	if strings.Contains(path, "...") && strings.Contains(path, "/") {
		parts := strings.Split(path, "...")
		tail := parts[len(parts)-1]
		if strings.Contains(tail, "/") {
			name = strings.TrimSpace(tail[strings.LastIndex(tail, "/")+1:])
		}
	}

	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxFilenameLen {
		name = string(runes[:maxFilenameLen-3]) + "..."
	}
	return name
}
