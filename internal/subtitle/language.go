package subtitle

import (
	"path"
	"regexp"
	"strings"
)

type language struct {
	code    string
	name    string
	aliases []string
}

// languages lists the ISO 639-1 code, display name and the ISO 639-2 or
// spelled-out forms found in release file names.
var languages = []language{
	{"en", "English", []string{"eng", "english"}},
	{"ru", "Russian", []string{"rus", "russian"}},
	{"tr", "Turkish", []string{"tur", "turkish"}},
	{"az", "Azerbaijani", []string{"aze", "azerbaijani"}},
	{"es", "Spanish", []string{"spa", "spanish"}},
	{"de", "German", []string{"deu", "ger", "german"}},
	{"fr", "French", []string{"fra", "fre", "french"}},
	{"it", "Italian", []string{"ita", "italian"}},
	{"pt", "Portuguese", []string{"por", "portuguese"}},
	{"ja", "Japanese", []string{"jpn", "japanese"}},
	{"ko", "Korean", []string{"kor", "korean"}},
	{"zh", "Chinese", []string{"chi", "chs", "cht", "zho", "chinese"}},
	{"ar", "Arabic", []string{"ara", "arabic"}},
	{"hi", "Hindi", []string{"hin", "hindi"}},
	{"pl", "Polish", []string{"pol", "polish"}},
	{"nl", "Dutch", []string{"dut", "nld", "dutch"}},
	{"sv", "Swedish", []string{"swe", "swedish"}},
	{"no", "Norwegian", []string{"nor", "norwegian"}},
	{"da", "Danish", []string{"dan", "danish"}},
	{"fi", "Finnish", []string{"fin", "finnish"}},
	{"cs", "Czech", []string{"cze", "ces", "czech"}},
	{"hu", "Hungarian", []string{"hun", "hungarian"}},
	{"ro", "Romanian", []string{"ron", "rum", "romanian"}},
	{"el", "Greek", []string{"gre", "ell", "greek"}},
	{"he", "Hebrew", []string{"heb", "hebrew"}},
	{"th", "Thai", []string{"tha", "thai"}},
	{"vi", "Vietnamese", []string{"vie", "vietnamese"}},
	{"id", "Indonesian", []string{"ind", "indonesian"}},
	{"uk", "Ukrainian", []string{"ukr", "ukrainian"}},
	{"bg", "Bulgarian", []string{"bul", "bulgarian"}},
	{"hr", "Croatian", []string{"hrv", "croatian"}},
	{"sr", "Serbian", []string{"srp", "serbian"}},
}

// languageTag captures the token right before the subtitle extension,
// e.g. "en" in "Movie.2010.en.srt" or "forced" in "Movie.en.forced.srt".
var languageTag = regexp.MustCompile(`(?i)[._ -]([a-z]{2,12})(?:[._ -](?:forced|sdh|hi|cc))?\.(?:srt|sub|ass|ssa|vtt|idx|smi)$`)

var languageIndex = func() map[string]language {
	idx := make(map[string]language)
	for _, l := range languages {
		idx[l.code] = l
		for _, a := range l.aliases {
			idx[a] = l
		}
	}
	return idx
}()

// DetectLanguage attempts to detect the language of a subtitle file from its
// name, then from the folders above it ("Subs/English/1.srt").
// If no language is detected, returns ("unknown", "Unknown", false).
func DetectLanguage(filename string) (code string, name string, detected bool) {
	if m := languageTag.FindStringSubmatch(path.Base(filename)); m != nil {
		if l, ok := languageIndex[strings.ToLower(m[1])]; ok {
			return l.code, l.name, true
		}
	}

	for _, part := range strings.Split(path.Dir(filename), "/") {
		lower := strings.ToLower(part)
		if len(lower) < 3 {
			// two-letter folder names are too ambiguous
			continue
		}
		if l, ok := languageIndex[lower]; ok {
			return l.code, l.name, true
		}
	}

	return "unknown", "Unknown", false
}
