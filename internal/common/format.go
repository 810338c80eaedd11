package common

import (
	"strconv"
	"strings"
)

// Itoa converts an int to a string using strconv.Itoa.
func Itoa(n int) string {
	return strconv.Itoa(n)
}

// PadZero pads an integer with leading zeros to reach the specified width.
func PadZero(n, width int) string {
	s := strconv.Itoa(n)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// EpisodeCode renders a season/episode pair as S01E02.
func EpisodeCode(season, episode int) string {
	return "S" + PadZero(season, 2) + "E" + PadZero(episode, 2)
}

// CollapseSpaces trims s and reduces every run of whitespace to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
