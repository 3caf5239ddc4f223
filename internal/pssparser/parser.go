// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pssparser decodes semicolon-delimited PSS protocol lines into
// typed domain.PssPayload values. The parser is pure: no I/O, no time, no
// randomness, and bounded allocation per line.
package pssparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tkdvta/corevta/internal/domain"
)

// ParseError describes why a line failed to decode. The caller must still
// persist the raw line as an invalid event.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pss parse error: %s (line=%q)", e.Reason, e.Line)
}

// Parse decodes one trimmed PSS line into its typed payload. Unknown event
// codes produce a domain.Raw payload with a nil error, per the "unknown
// codes are still valid" rule.
func Parse(line string) (domain.PssPayload, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return nil, &ParseError{Line: line, Reason: "empty line"}
	}
	tokens := strings.Split(line, ";")
	// Real PSS lines terminate with a trailing ';' (e.g. "pt1;3;",
	// "rnd;1;"), which strings.Split turns into one trailing empty token.
	// Strip it before counting arguments so the exact/bounded length
	// checks below see the intended argument count.
	if len(tokens) > 1 && tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	code := tokens[0]
	args := tokens[1:]

	switch {
	case code == "pt1" || code == "pt2":
		return parsePoints(line, code, args)
	case code == "hl1" || code == "hl2":
		return parseHitLevel(line, code, args)
	case code == "wg1":
		return parseWarnings(line, args)
	case strings.HasPrefix(code, "ij") && len(code) == 3:
		return parseInjury(line, code, args)
	case strings.HasPrefix(code, "ch") && len(code) == 3:
		return parseChallenge(line, code, args)
	case code == "brk":
		return parseBreak(line, args)
	case code == "wrd":
		return parseWinnerRounds(line, args)
	case code == "wmh":
		return parseWinner(line, args)
	case code == "at1":
		return parseAthletes(line, args)
	case code == "mch":
		return parseMatchConfig(line, args)
	case isRoundScoreCode(code):
		return parseRoundScore(line, code, args)
	case code == "sc1" || code == "sc2":
		return parseCurrentScores(line, code, args)
	case code == "clk":
		return parseClock(line, args)
	case code == "rnd":
		return parseRound(line, args)
	case code == "pre" && len(args) == 1 && args[0] == "FightLoaded":
		return domain.FightLoaded{}, nil
	case code == "rdy" && len(args) == 1 && args[0] == "FightReady":
		return domain.FightReady{}, nil
	case code == "win":
		return parseWinnerAlias(line, args)
	case code == "avt":
		return parseAthleteVideoTime(line, args)
	default:
		return domain.Raw{Line: line}, nil
	}
}

func parseUint(line, field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &ParseError{Line: line, Reason: fmt.Sprintf("%s must be numeric, got %q", field, s)}
	}
	return n, nil
}

func parsePoints(line, code string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "pt requires exactly one argument"}
	}
	pt, err := parseUint(line, "point_type", args[0])
	if err != nil {
		return nil, err
	}
	if pt < 1 || pt > 5 {
		return nil, &ParseError{Line: line, Reason: "point_type out of range 1..5"}
	}
	return domain.Points{Athlete: athletePosition(code), PointType: pt}, nil
}

func parseHitLevel(line, code string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "hl requires exactly one argument"}
	}
	lvl, err := parseUint(line, "level", args[0])
	if err != nil {
		return nil, err
	}
	if lvl > 100 {
		return nil, &ParseError{Line: line, Reason: "level out of range 0..100"}
	}
	return domain.HitLevel{Athlete: athletePosition(code), Level: lvl}, nil
}

func parseWarnings(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 3 || args[1] != "wg2" {
		return nil, &ParseError{Line: line, Reason: "wg1;<n1>;wg2;<n2> missing literal wg2"}
	}
	n1, err := parseUint(line, "n1", args[0])
	if err != nil {
		return nil, err
	}
	n2, err := parseUint(line, "n2", args[2])
	if err != nil {
		return nil, err
	}
	return domain.Warnings{N1: n1, N2: n2}, nil
}

func parseInjury(line, code string, args []string) (domain.PssPayload, error) {
	athlete, err := parseUint(line, "athlete", code[2:])
	if err != nil || athlete > 2 {
		return nil, &ParseError{Line: line, Reason: "injury athlete must be 0, 1, or 2"}
	}
	if len(args) < 1 {
		return nil, &ParseError{Line: line, Reason: "ij requires a time argument"}
	}
	inj := domain.Injury{Athlete: athlete, Time: args[0]}
	if len(args) > 1 {
		inj.Action = args[1]
	}
	return inj, nil
}

func parseChallenge(line, code string, args []string) (domain.PssPayload, error) {
	source, err := parseUint(line, "source", code[2:])
	if err != nil || source > 2 {
		return nil, &ParseError{Line: line, Reason: "challenge source must be 0, 1, or 2"}
	}
	ch := domain.Challenge{Source: source}
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, &ParseError{Line: line, Reason: "challenge accepted must be numeric"}
		}
		if n == -1 {
			ch.Canceled = true
		} else {
			ch.Accepted = &n
		}
	}
	if len(args) >= 2 {
		won, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, &ParseError{Line: line, Reason: "challenge won must be numeric"}
		}
		ch.Won = &won
	}
	return ch, nil
}

func parseBreak(line string, args []string) (domain.PssPayload, error) {
	if len(args) < 1 {
		return nil, &ParseError{Line: line, Reason: "brk requires a time argument"}
	}
	br := domain.Break{Time: args[0]}
	if len(args) > 1 {
		br.Action = args[1]
	}
	return br, nil
}

func parseWinnerRounds(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 6 || args[0] != "rd1" || args[2] != "rd2" || args[4] != "rd3" {
		return nil, &ParseError{Line: line, Reason: "wrd requires literals rd1, rd2, rd3 in order"}
	}
	w1, err := parseUint(line, "w1", args[1])
	if err != nil {
		return nil, err
	}
	w2, err := parseUint(line, "w2", args[3])
	if err != nil {
		return nil, err
	}
	w3, err := parseUint(line, "w3", args[5])
	if err != nil {
		return nil, err
	}
	return domain.WinnerRounds{W1: w1, W2: w2, W3: w3}, nil
}

func parseWinner(line string, args []string) (domain.PssPayload, error) {
	if len(args) < 1 {
		return nil, &ParseError{Line: line, Reason: "wmh requires a name argument"}
	}
	w := domain.Winner{Name: args[0]}
	if len(args) > 1 {
		w.Classification = args[1]
	}
	return w, nil
}

func parseAthletes(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 7 || args[3] != "at2" {
		return nil, &ParseError{Line: line, Reason: "at1;...;at2;... missing literal at2"}
	}
	return domain.Athletes{
		Athlete1: domain.AthleteSlot{ShortName: args[0], LongName: args[1], CountryCode: args[2]},
		Athlete2: domain.AthleteSlot{ShortName: args[4], LongName: args[5], CountryCode: args[6]},
	}, nil
}

func parseMatchConfig(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 15 {
		return nil, &ParseError{Line: line, Reason: "mch requires 15 arguments"}
	}
	number, err := parseUint(line, "number", args[0])
	if err != nil {
		return nil, err
	}
	rounds, err := parseUint(line, "rounds", args[3])
	if err != nil {
		return nil, err
	}
	totalRounds, err := parseUint(line, "total_rounds", args[10])
	if err != nil {
		return nil, err
	}
	roundDuration, err := parseUint(line, "round_duration_s", args[11])
	if err != nil {
		return nil, err
	}
	countdownType, err := parseUint(line, "countdown_type", args[12])
	if err != nil {
		return nil, err
	}
	countUp, err := parseUint(line, "count_up", args[13])
	if err != nil {
		return nil, err
	}
	return domain.MatchConfig{
		Number:         number,
		Category:       args[1],
		Weight:         args[2],
		Rounds:         rounds,
		Bg1:            args[4],
		Fg1:            args[5],
		Bg2:            args[6],
		Fg2:            args[7],
		MatchID:        args[8],
		Division:       args[9],
		TotalRounds:    totalRounds,
		RoundDurationS: roundDuration,
		CountdownType:  countdownType,
		CountUp:        countUp,
		Format:         args[14],
	}, nil
}

func isRoundScoreCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	return (code[:2] == "s1" || code[:2] == "s2") && code[2] >= '1' && code[2] <= '3'
}

func parseRoundScore(line, code string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "round score requires exactly one argument"}
	}
	score, err := parseUint(line, "score", args[0])
	if err != nil {
		return nil, err
	}
	round, _ := strconv.Atoi(string(code[2]))
	return domain.RoundScore{Athlete: athletePosition(code[:2]), Round: round, Score: score}, nil
}

func parseCurrentScores(line, code string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "sc requires exactly one argument"}
	}
	score, err := parseUint(line, "score", args[0])
	if err != nil {
		return nil, err
	}
	return domain.CurrentScores{Athlete: athletePosition(code), Score: score}, nil
}

func parseClock(line string, args []string) (domain.PssPayload, error) {
	if len(args) < 1 {
		return nil, &ParseError{Line: line, Reason: "clk requires a time argument"}
	}
	c := domain.Clock{Time: args[0]}
	if len(args) > 1 {
		c.Action = args[1]
	}
	return c, nil
}

func parseRound(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "rnd requires exactly one argument"}
	}
	n, err := parseUint(line, "round number", args[0])
	if err != nil {
		return nil, err
	}
	return domain.RoundEvent{Number: n}, nil
}

func parseWinnerAlias(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 || (args[0] != "BLUE" && args[0] != "RED") {
		return nil, &ParseError{Line: line, Reason: "win requires BLUE or RED"}
	}
	return domain.Winner{Name: args[0]}, nil
}

func parseAthleteVideoTime(line string, args []string) (domain.PssPayload, error) {
	if len(args) != 1 {
		return nil, &ParseError{Line: line, Reason: "avt requires exactly one argument"}
	}
	return domain.AthleteVideoTime{VideoTime: args[0]}, nil
}

func athletePosition(code string) domain.MatchPosition {
	if strings.HasSuffix(code, "1") {
		return domain.PositionOne
	}
	return domain.PositionTwo
}
