// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package recording

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestGeneratePathMatchesConfigDefaultTokens exercises the operative
// production default (config.defaultConfig()'s "{tournament}/{tournamentDay}"
// folder pattern), not path.go's own internal fallback, so a token-spelling
// mismatch between the two can't hide behind the fallback matching itself.
func TestGeneratePathMatchesConfigDefaultTokens(t *testing.T) {
	cfg := PathConfig{
		VideosRoot:      "/videos",
		DirectoryFormat: "{tournament}/{tournamentDay}",
		FilenameFormat:  "{matchNumber} {player1} VS {player2} {date}_{time}",
	}

	gen := GeneratePath(cfg, PathInput{
		MatchNumber: 101,
		Player1:     "Kim",
		Player2:     "Smith",
	})

	assert.Equal(t, filepath.Join("/videos", "Tournament 1", "Day 1"), gen.Directory)
	assert.Equal(t, "101 Kim VS Smith %DD-%MM-%CCYY_%hh-%mm-%ss", gen.Filename)
	assert.Equal(t, 1, gen.Tournament)
	assert.Equal(t, 1, gen.TournamentDay)
}

// TestGeneratePathHonorsExplicitTournamentDay ensures the replacer keys off
// the camelCase {tournamentDay} token spec.md §6 documents, not a snake_case
// spelling path.go alone would agree with.
func TestGeneratePathHonorsExplicitTournamentDay(t *testing.T) {
	cfg := PathConfig{
		VideosRoot:      "/videos",
		DirectoryFormat: "{tournament}/{tournamentDay}",
	}

	gen := GeneratePath(cfg, PathInput{Tournament: 2, TournamentDay: 3})

	assert.Equal(t, filepath.Join("/videos", "Tournament 2", "Day 3"), gen.Directory)
}

func TestResolveTournamentDayDefaultsWhenEmpty(t *testing.T) {
	tournament, day, hasExisting := ResolveTournamentDay(t.TempDir())

	assert.Equal(t, 1, tournament)
	assert.Equal(t, 1, day)
	assert.False(t, hasExisting)
}
