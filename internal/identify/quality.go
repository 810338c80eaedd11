package identify

import "strings"

// ParseQuality extracts release quality from a filename.
func ParseQuality(name string) QualityInfo {
	p := defaultPatterns
	quality := QualityInfo{}

	if match := p.Resolution.FindString(name); match != "" {
		quality.Resolution = normalizeResolution(match)
	}
	if match := p.Source.FindString(name); match != "" {
		quality.Source = normalizeSource(match)
	}
	if match := p.Codec.FindString(name); match != "" {
		quality.Codec = normalizeCodec(match)
	}
	if p.HDR.MatchString(name) {
		quality.HDR = true
	}

	return quality
}

// HasReleaseTag reports whether name carries tag as a whole token,
// case-insensitively. Tags may themselves contain separators ("WEB-DL").
func HasReleaseTag(name, tag string) bool {
	norm := func(s string) string {
		return " " + strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return r == '.' || r == '_' || r == '-' || r == ' ' || r == '[' || r == ']' || r == '(' || r == ')'
		}), " ") + " "
	}
	t := strings.TrimSpace(norm(tag))
	if t == "" {
		return false
	}
	return strings.Contains(norm(name), " "+t+" ")
}

// normalizeResolution converts resolution to standard format
func normalizeResolution(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "2160") || upper == "4K" || upper == "UHD":
		return "2160p"
	case strings.Contains(upper, "1080"):
		return "1080p"
	case strings.Contains(upper, "720"):
		return "720p"
	case strings.Contains(upper, "576"):
		return "576p"
	case strings.Contains(upper, "480"):
		return "480p"
	default:
		return match
	}
}

// normalizeSource converts source to standard format
func normalizeSource(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case upper == "REMUX":
		return "REMUX"
	case strings.Contains(upper, "BLURAY") || strings.Contains(upper, "BLU-RAY") || strings.Contains(upper, "BDRIP") || strings.Contains(upper, "BRRIP"):
		return "BluRay"
	case strings.HasPrefix(upper, "WEB") && strings.HasSuffix(upper, "DL"):
		return "WEB-DL"
	case strings.Contains(upper, "WEBRIP"):
		return "WEBRip"
	case strings.Contains(upper, "HDTV"):
		return "HDTV"
	case strings.Contains(upper, "DVDRIP"):
		return "DVDRip"
	default:
		return match
	}
}

// normalizeCodec converts codec to standard format
func normalizeCodec(match string) string {
	upper := strings.ToUpper(match)
	switch {
	case strings.Contains(upper, "265") || strings.Contains(upper, "HEVC"):
		return "HEVC"
	case strings.Contains(upper, "264") || strings.Contains(upper, "AVC"):
		return "H.264"
	case strings.Contains(upper, "AV1"):
		return "AV1"
	default:
		return match
	}
}
