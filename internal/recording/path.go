// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recording implements the Recording Controller: a PSS-event-driven
// state machine owning at most one RecordingSession, including tournament
// path generation and scene-controller filename templating.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	tournamentDirRe = regexp.MustCompile(`^Tournament (\d+)$`)
	dayDirRe        = regexp.MustCompile(`^Day (\d+)$`)
)

// PathConfig configures how recording paths and filenames are generated.
type PathConfig struct {
	VideosRoot      string
	DirectoryFormat string // default "{tournament}/{tournamentDay}"
	FilenameFormat  string // default "{matchNumber}_{player1}_{player2}_{date}_{time}"
}

// GeneratedPath is the resolved directory and filename for a session.
type GeneratedPath struct {
	Directory     string
	Filename      string
	Tournament    int
	TournamentDay int
}

// PathInput describes the fields available when generating a path.
type PathInput struct {
	MatchNumber   int
	Player1       string
	Player2       string
	Player1Flag   string
	Player2Flag   string
	Tournament    int // 0 means unknown
	TournamentDay int // 0 means unknown
}

func defaultDirectoryFormat() string {
	return "{tournament}/{tournamentDay}"
}

func defaultFilenameFormat() string {
	return "{matchNumber}_{player1}_{player2}_{date}_{time}"
}

// ResolveTournamentDay determines the active tournament/day when the input
// does not already specify them: it scans VideosRoot for existing
// "Tournament N" folders to find the active tournament, then within that
// folder for "Day N" folders to find the current day. Absent any folders it
// defaults to Tournament 1/Day 1. hasExisting reports whether any
// "Tournament N" folder was found on disk, which callers use to decide
// whether to prompt before creating directories.
func ResolveTournamentDay(videosRoot string) (tournament, day int, hasExisting bool) {
	maxTournament := 0
	entries, err := os.ReadDir(videosRoot)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if m := tournamentDirRe.FindStringSubmatch(e.Name()); m != nil {
				hasExisting = true
				if n, err := strconv.Atoi(m[1]); err == nil && n > maxTournament {
					maxTournament = n
				}
			}
		}
	}
	if maxTournament == 0 {
		return 1, 1, hasExisting
	}

	tournamentDir := filepath.Join(videosRoot, fmt.Sprintf("Tournament %d", maxTournament))
	maxDay := 0
	dayEntries, err := os.ReadDir(tournamentDir)
	if err == nil {
		for _, e := range dayEntries {
			if !e.IsDir() {
				continue
			}
			if m := dayDirRe.FindStringSubmatch(e.Name()); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > maxDay {
					maxDay = n
				}
			}
		}
	}
	if maxDay == 0 {
		maxDay = 1
	}
	return maxTournament, maxDay, hasExisting
}

// NextTournamentSuggestion proposes "start new" over "continue with
// current" for the ObsPathDecisionNeeded prompt.
func NextTournamentSuggestion(current int) int {
	return current + 1
}

// GeneratePath renders the directory and filename for in, applying cfg's
// templates. It does not touch the filesystem.
func GeneratePath(cfg PathConfig, in PathInput) GeneratedPath {
	dirFormat := cfg.DirectoryFormat
	if dirFormat == "" {
		dirFormat = defaultDirectoryFormat()
	}
	tournament := in.Tournament
	if tournament == 0 {
		tournament = 1
	}
	day := in.TournamentDay
	if day == 0 {
		day = 1
	}

	dirRel := strings.NewReplacer(
		"{tournament}", fmt.Sprintf("Tournament %d", tournament),
		"{tournamentDay}", fmt.Sprintf("Day %d", day),
	).Replace(dirFormat)

	return GeneratedPath{
		Directory:     filepath.Join(cfg.VideosRoot, dirRel),
		Filename:      BuildFilename(cfg.FilenameFormat, in),
		Tournament:    tournament,
		TournamentDay: day,
	}
}

// BuildFilename renders template with in's fields, inserts a " VS "
// separator between adjacent player tokens when the template lacks one, and
// translates {date}/{time} into the scene controller's strftime-like
// placeholders.
func BuildFilename(template string, in PathInput) string {
	if template == "" {
		template = defaultFilenameFormat()
	}

	if !strings.Contains(template, "VS") && strings.Contains(template, "{player1}") &&
		strings.Contains(template, "{player2}") && strings.Contains(template, "{player1}{player2}") {
		template = strings.Replace(template, "{player1}{player2}", "{player1} VS {player2}", 1)
	}

	fmt := strings.NewReplacer(
		"{matchNumber}", strconv.Itoa(in.MatchNumber),
		"{player1}", in.Player1,
		"{player2}", in.Player2,
		"{player1Flag}", in.Player1Flag,
		"{player2Flag}", in.Player2Flag,
		"{date}", "%DD-%MM-%CCYY",
		"{time}", "%hh-%mm-%ss",
	).Replace(template)

	return fmt
}

// EnsureDirectory creates dir (and parents) if it does not already exist.
func EnsureDirectory(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
