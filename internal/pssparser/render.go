// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package pssparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tkdvta/corevta/internal/domain"
)

// Render re-serializes a typed payload back into its canonical PSS line.
// Render(Parse(line)) must parse to an equal value for every well-formed
// line; Render itself never fails for a value that Parse produced.
func Render(p domain.PssPayload) (string, error) {
	switch v := p.(type) {
	case domain.Points:
		return fmt.Sprintf("pt%d;%d", v.Athlete, v.PointType), nil
	case domain.HitLevel:
		return fmt.Sprintf("hl%d;%d", v.Athlete, v.Level), nil
	case domain.Warnings:
		return fmt.Sprintf("wg1;%d;wg2;%d", v.N1, v.N2), nil
	case domain.Injury:
		parts := []string{fmt.Sprintf("ij%d", v.Athlete), v.Time}
		if v.Action != "" {
			parts = append(parts, v.Action)
		}
		return strings.Join(parts, ";"), nil
	case domain.Challenge:
		parts := []string{fmt.Sprintf("ch%d", v.Source)}
		if v.Canceled {
			parts = append(parts, "-1")
		} else if v.Accepted != nil {
			parts = append(parts, strconv.Itoa(*v.Accepted))
			if v.Won != nil {
				parts = append(parts, strconv.Itoa(*v.Won))
			}
		}
		return strings.Join(parts, ";"), nil
	case domain.Break:
		parts := []string{"brk", v.Time}
		if v.Action != "" {
			parts = append(parts, v.Action)
		}
		return strings.Join(parts, ";"), nil
	case domain.WinnerRounds:
		return fmt.Sprintf("wrd;rd1;%d;rd2;%d;rd3;%d", v.W1, v.W2, v.W3), nil
	case domain.Winner:
		if v.Name == "BLUE" || v.Name == "RED" {
			return fmt.Sprintf("win;%s", v.Name), nil
		}
		parts := []string{"wmh", v.Name}
		if v.Classification != "" {
			parts = append(parts, v.Classification)
		}
		return strings.Join(parts, ";"), nil
	case domain.Athletes:
		return fmt.Sprintf("at1;%s;%s;%s;at2;%s;%s;%s",
			v.Athlete1.ShortName, v.Athlete1.LongName, v.Athlete1.CountryCode,
			v.Athlete2.ShortName, v.Athlete2.LongName, v.Athlete2.CountryCode), nil
	case domain.MatchConfig:
		return fmt.Sprintf("mch;%d;%s;%s;%d;%s;%s;%s;%s;%s;%s;%d;%d;%d;%d;%s",
			v.Number, v.Category, v.Weight, v.Rounds, v.Bg1, v.Fg1, v.Bg2, v.Fg2,
			v.MatchID, v.Division, v.TotalRounds, v.RoundDurationS, v.CountdownType,
			v.CountUp, v.Format), nil
	case domain.RoundScore:
		return fmt.Sprintf("s%d%d;%d", v.Athlete, v.Round, v.Score), nil
	case domain.CurrentScores:
		return fmt.Sprintf("sc%d;%d", v.Athlete, v.Score), nil
	case domain.Clock:
		parts := []string{"clk", v.Time}
		if v.Action != "" {
			parts = append(parts, v.Action)
		}
		return strings.Join(parts, ";"), nil
	case domain.RoundEvent:
		return fmt.Sprintf("rnd;%d", v.Number), nil
	case domain.FightLoaded:
		return "pre;FightLoaded", nil
	case domain.FightReady:
		return "rdy;FightReady", nil
	case domain.AthleteVideoTime:
		return fmt.Sprintf("avt;%s", v.VideoTime), nil
	case domain.Raw:
		return v.Line, nil
	default:
		return "", fmt.Errorf("pssparser: unrenderable payload type %T", p)
	}
}
