package identify

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/shapedtime/cloudlib/internal/common"
	"github.com/shapedtime/cloudlib/internal/metadata"
)

// Normalized is a filename reduced to a searchable title.
type Normalized struct {
	Name string
	// Year is 0 when no plausible release year was found.
	Year int
}

// Normalizer turns noisy release names into search titles. The clock only
// bounds which four-digit tokens count as plausible years.
type Normalizer struct {
	Now func() time.Time
}

// Normalize uses the wall clock.
func Normalize(raw string, kind metadata.Kind) Normalized {
	return Normalizer{}.Normalize(raw, kind)
}

var (
	resolutionToken = regexp.MustCompile(`^(\d{3,4}[pi]|4k|8k|uhd|2160|1080|720)$`)
	codecToken      = regexp.MustCompile(`^([xh]\.?26[45]|hevc|avc|av1|xvid|divx|vp9|10bit|8bit|hi10p?)$`)
	audioToken      = regexp.MustCompile(`^(aac\d?|ac3|eac3|dts|dts-hd|dts-x|truehd|atmos|flac|mp3|opus|ddp?\d?|dd\+|[257]ch)$`)
	seasonToken     = regexp.MustCompile(`^s\d{1,2}(e\d{1,3})*(-s?\d{1,2})?$`)
	yearToken       = regexp.MustCompile(`^\d{4}$`)
)

// Release sources. Reaching one of these ends the title.
var sourceTokens = map[string]bool{
	"bluray": true, "blu-ray": true, "bdrip": true, "brrip": true, "bdremux": true,
	"remux": true, "dvdrip": true, "dvd": true, "dvdscr": true, "dvd5": true, "dvd9": true,
	"webrip": true, "web-dl": true, "webdl": true, "web-rip": true, "hdtv": true,
	"hdrip": true, "hdcam": true, "telesync": true, "amzn": true, "dsnp": true,
	"hmax": true, "atvp": true, "nf": true,
}

// Edition, audio and release-flag words removed wherever they appear.
var softTokens = map[string]bool{
	"extended": true, "unrated": true, "uncut": true, "remastered": true,
	"proper": true, "repack": true, "rerip": true, "internal": true, "limited": true,
	"multi": true, "multisubs": true, "subbed": true, "dubbed": true, "dual": true,
	"hdr": true, "hdr10": true, "hdr10+": true, "dv": true, "dovi": true, "sdr": true,
	"imax": true, "theatrical": true, "criterion": true, "readnfo": true,
}

var bracketPairs = map[string]string{"(": ")", "[": "]", "{": "}"}

// Normalize reduces raw to a lowercase, accent-free title plus an optional
// release year (movies only).
func (n Normalizer) Normalize(raw string, kind metadata.Kind) Normalized {
	tokens := tokenize(stripExtension(raw))

	year := 0
	if kind == metadata.KindMovie {
		tokens, year = n.extractYear(tokens)
	}

	tokens = dropBracketed(tokens)
	tokens = truncateAtMarker(tokens, kind)
	tokens = dropNoise(tokens)

	return Normalized{
		Name: FoldName(strings.Join(tokens, " ")),
		Year: year,
	}
}

// extractYear applies the year patterns in order: an explicit "name year",
// the last year before a resolution marker, then the last year anywhere.
func (n Normalizer) extractYear(tokens []string) ([]string, int) {
	maxYear := n.now().Year() + 1
	plausible := func(tok string) (int, bool) {
		if !yearToken.MatchString(tok) {
			return 0, false
		}
		y, _ := strconv.Atoi(tok)
		return y, y >= 1900 && y <= maxYear
	}

	for i := 1; i < len(tokens); i++ {
		y, ok := plausible(tokens[i])
		if !ok || !hasWord(tokens[:i]) {
			continue
		}
		if i == len(tokens)-1 || isBracket(tokens[i+1]) || isNoise(tokens[i+1]) {
			return tokens[:i], y
		}
	}

	resIdx := -1
	for i, tok := range tokens {
		if resolutionToken.MatchString(strings.ToLower(tok)) && !yearToken.MatchString(tok) {
			resIdx = i
			break
		}
	}
	if resIdx > 0 {
		for i := resIdx - 1; i >= 1; i-- {
			if y, ok := plausible(tokens[i]); ok && hasWord(tokens[:i]) {
				return tokens[:i], y
			}
		}
	}

	for i := len(tokens) - 1; i >= 0; i-- {
		if y, ok := plausible(tokens[i]); ok {
			rest := append(append([]string{}, tokens[:i]...), tokens[i+1:]...)
			if hasWord(rest) {
				return rest, y
			}
		}
	}

	return tokens, 0
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldName lowercases s, strips diacritics and punctuation, and collapses
// whitespace. Candidate names from the metadata service go through the same
// fold before similarity scoring.
func FoldName(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return common.CollapseSpaces(b.String())
}

func stripExtension(raw string) string {
	ext := strings.ToLower(path.Ext(raw))
	if videoExtensions[ext] || subtitleExtensions[ext] {
		return raw[:len(raw)-len(ext)]
	}
	return raw
}

func tokenize(s string) []string {
	s = strings.NewReplacer(
		".", " ", "_", " ",
		"(", " ( ", ")", " ) ",
		"[", " [ ", "]", " ] ",
		"{", " { ", "}", " } ",
	).Replace(s)
	return strings.Fields(s)
}

func isBracket(tok string) bool {
	switch tok {
	case "(", ")", "[", "]", "{", "}":
		return true
	}
	return false
}

func hasWord(tokens []string) bool {
	for _, tok := range tokens {
		if !isBracket(tok) && tok != "-" {
			return true
		}
	}
	return false
}

// dropBracketed removes bracketed annotations. If nothing outside brackets
// survives, the bracket contents are kept instead.
func dropBracketed(tokens []string) []string {
	var out, inner []string
	var stack []string
	for _, tok := range tokens {
		if closing, ok := bracketPairs[tok]; ok {
			stack = append(stack, closing)
			continue
		}
		if len(stack) > 0 && tok == stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
			continue
		}
		if isBracket(tok) {
			continue
		}
		if len(stack) > 0 {
			inner = append(inner, tok)
		} else {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return inner
	}
	return out
}

// truncateAtMarker ends the title at the first resolution, source or codec
// token, and for shows at the first season marker.
func truncateAtMarker(tokens []string, kind metadata.Kind) []string {
	for i := 1; i < len(tokens); i++ {
		lower := strings.ToLower(tokens[i])
		hard := resolutionToken.MatchString(lower) && !yearToken.MatchString(lower) ||
			sourceTokens[lower] || codecToken.MatchString(lower) ||
			lower == "web" && i+1 < len(tokens) && isWebSuffix(tokens[i+1])
		if kind == metadata.KindShow {
			hard = hard || seasonToken.MatchString(lower) || lower == "season" || lower == "complete"
		}
		if hard {
			return tokens[:i]
		}
	}
	return tokens
}

func isWebSuffix(tok string) bool {
	lower := strings.ToLower(tok)
	return lower == "dl" || lower == "rip"
}

// isNoise reports whether tok is release metadata rather than part of a title.
func isNoise(tok string) bool {
	lower := strings.ToLower(tok)
	if sourceTokens[lower] || softTokens[lower] ||
		resolutionToken.MatchString(lower) && !yearToken.MatchString(lower) ||
		codecToken.MatchString(lower) || audioToken.MatchString(lower) {
		return true
	}
	if i := strings.LastIndex(lower, "-"); i > 0 {
		return isNoise(lower[:i])
	}
	return false
}

// dropNoise removes vocabulary tokens and "-GROUP" tags. A word after a
// spaced dash is a subtitle, not a group. Edition words only count as noise
// after the first token.
func dropNoise(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if i == 0 && softTokens[strings.ToLower(tok)] {
			out = append(out, tok)
			continue
		}
		if tok == "-" || isNoise(tok) {
			continue
		}
		if strings.HasPrefix(tok, "-") {
			continue
		}
		out = append(out, tok)
	}
	if len(out) == 0 {
		return tokens
	}
	return out
}
