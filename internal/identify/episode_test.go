package identify

import (
	"context"
	"testing"

	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/storage"
)

func TestParseEpisode(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		folder     string
		wantOK     bool
		wantS      int
		wantE      int
		wantEpConf Confidence
		pattern    string
	}{
		{"explicit", "Show Name S02E05 Pilot.mkv", "Season 2", true, 2, 5, ConfidenceHigh, "SxxExx"},
		{"explicit dotted", "show.name.s10e120.720p.mkv", "", true, 10, 120, ConfidenceHigh, "SxxExx"},
		{"explicit beats folder", "Show S01E03.mkv", "Season 4", true, 1, 3, ConfidenceHigh, "SxxExx"},
		{"cross format", "show.name.1x05.mkv", "", true, 1, 5, ConfidenceHigh, "XxYY"},
		{"verbose", "Show Name Season 2 Episode 5.mkv", "", true, 2, 5, ConfidenceMedium, "Season X Episode Y"},
		{"ep keyword", "Ep 07.mkv", "Season 3", true, 3, 7, ConfidenceMedium, "Ep/Episode + folder"},
		{"leading number", "05 - The One.mkv", "Season 2", true, 2, 5, ConfidenceLow, "number + folder"},
		{"season folder short", "12.mkv", "S3", true, 3, 12, ConfidenceLow, "number + folder"},
		{"season-prefixed number", "205 Title.mkv", "Season 2", true, 2, 5, ConfidenceMedium, "SEE + folder"},
		{"bracketed group ignored", "[Group] Show - 07 [720p].mkv", "Season 1", true, 1, 7, ConfidenceLow, "number + folder"},
		{"resolution is not an episode", "Show 720p.mkv", "Season 1", false, 1, 0, ConfidenceNone, ""},
		{"no numbers", "Title.mkv", "Season 2", false, 2, 0, ConfidenceNone, ""},
		{"no folder season", "Title 05.mkv", "Extras", false, 0, 0, ConfidenceNone, ""},
		{"resolution fraction", "Movie 1920x1080.mkv", "", false, 0, 0, ConfidenceNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEpisode(tt.filename, tt.folder)
			if got.OK() != tt.wantOK {
				t.Fatalf("ParseEpisode(%q, %q).OK() = %v, want %v (%+v)", tt.filename, tt.folder, got.OK(), tt.wantOK, got)
			}
			if got.Season != tt.wantS || got.Episode != tt.wantE {
				t.Errorf("ParseEpisode(%q, %q) = S%dE%d, want S%dE%d", tt.filename, tt.folder, got.Season, got.Episode, tt.wantS, tt.wantE)
			}
			if got.EpisodeConfidence != tt.wantEpConf {
				t.Errorf("episode confidence = %v, want %v", got.EpisodeConfidence, tt.wantEpConf)
			}
			if got.Pattern != tt.pattern {
				t.Errorf("pattern = %q, want %q", got.Pattern, tt.pattern)
			}
		})
	}
}

func TestSeasonFromFolder(t *testing.T) {
	tests := []struct {
		name   string
		want   int
		wantOK bool
	}{
		{"Season 2", 2, true},
		{"season.02", 2, true},
		{"Series 3", 3, true},
		{"Show Name Season 10 1080p", 10, true},
		{"S4", 4, true},
		{"Specials", 0, false},
		{"Show Name", 0, false},
	}
	for _, tt := range tests {
		got, ok := SeasonFromFolder(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SeasonFromFolder(%q) = %d, %v; want %d, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func video(name string) storage.RemoteFile {
	return storage.RemoteFile{
		ID:       "/shows/Show Name/Season 2/" + name,
		Name:     name,
		MimeType: "video/x-matroska",
		Size:     100,
		ParentID: "/shows/Show Name/Season 2",
	}
}

var seasonTwo = []metadata.Episode{
	{Season: 1, Number: 5, Title: "Homecoming"},
	{Season: 2, Number: 1, Title: "Arrival"},
	{Season: 2, Number: 4, Title: "The Day"},
	{Season: 2, Number: 5, Title: "Pilot", Overview: "It begins.", StillURL: "http://img/s2e5.jpg"},
}

func TestMatchSeasonExplicitPattern(t *testing.T) {
	m := NewEpisodeMatcher(false, 4)

	got, err := m.MatchSeason(context.Background(), []storage.RemoteFile{video("Show Name S02E05 Pilot.mkv")}, "Season 2", seasonTwo)
	if err != nil {
		t.Fatalf("MatchSeason: %v", err)
	}
	if len(got.Resolved) != 1 {
		t.Fatalf("resolved %d files, want 1", len(got.Resolved))
	}
	r := got.Resolved[0]
	if r.Season != 2 || r.Episode != 5 || r.Title != "Pilot" || r.Overview != "It begins." || r.StillURL == "" || r.Placeholder {
		t.Errorf("resolved = %+v", r)
	}
}

func TestMatchSeasonTitleOnly(t *testing.T) {
	m := NewEpisodeMatcher(false, 2)

	got, err := m.MatchSeason(context.Background(), []storage.RemoteFile{video("Show Name - The Day.mkv")}, "Season 2", seasonTwo)
	if err != nil {
		t.Fatalf("MatchSeason: %v", err)
	}
	if len(got.Resolved) != 1 || got.Resolved[0].Episode != 4 || got.Resolved[0].Title != "The Day" {
		t.Errorf("resolved = %+v", got.Resolved)
	}
}

func TestMatchSeasonPlaceholders(t *testing.T) {
	files := []storage.RemoteFile{
		video("Show S02E03.mkv"),
		video("Show S02E09.mkv"),
		video("Beta.mkv"),
		video("Alpha.mkv"),
		video("Show S03E05.mkv"),
	}

	t.Run("strict", func(t *testing.T) {
		got, err := NewEpisodeMatcher(false, 2).MatchSeason(context.Background(), files, "Season 2", seasonTwo)
		if err != nil {
			t.Fatalf("MatchSeason: %v", err)
		}
		if len(got.Resolved) != 1 {
			t.Fatalf("resolved = %+v, want only S02E03", got.Resolved)
		}
		r := got.Resolved[0]
		if r.Season != 2 || r.Episode != 3 || !r.Placeholder || r.Title != "" {
			t.Errorf("placeholder = %+v", r)
		}
		if len(got.Skipped) != 4 {
			t.Errorf("skipped %d files, want 4", len(got.Skipped))
		}
	})

	t.Run("admit", func(t *testing.T) {
		got, err := NewEpisodeMatcher(true, 2).MatchSeason(context.Background(), files, "Season 2", seasonTwo)
		if err != nil {
			t.Fatalf("MatchSeason: %v", err)
		}
		placed := map[string][2]int{}
		for _, r := range got.Resolved {
			if !r.Placeholder {
				t.Errorf("%s should be a placeholder", r.File.Name)
			}
			placed[r.File.Name] = [2]int{r.Season, r.Episode}
		}
		want := map[string][2]int{
			"Show S02E03.mkv": {2, 3},
			"Show S02E09.mkv": {2, 9},
			"Show S03E05.mkv": {3, 5},
			"Alpha.mkv":       {2, 10},
			"Beta.mkv":        {2, 11},
		}
		for name, w := range want {
			if placed[name] != w {
				t.Errorf("%s placed at %v, want %v", name, placed[name], w)
			}
		}
		if len(got.Skipped) != 0 {
			t.Errorf("skipped = %v, want none", got.Skipped)
		}
	})
}

func TestMatchSeasonIgnoresExtras(t *testing.T) {
	files := []storage.RemoteFile{
		{ID: "/s/notes.txt", Name: "notes.txt", MimeType: "text/plain"},
		video("Show S02E01 sample.mkv"),
		{ID: "/s/sub", Name: "sub", IsFolder: true},
	}

	got, err := NewEpisodeMatcher(true, 1).MatchSeason(context.Background(), files, "Season 2", seasonTwo)
	if err != nil {
		t.Fatalf("MatchSeason: %v", err)
	}
	if len(got.Resolved) != 0 || len(got.Skipped) != 0 {
		t.Errorf("got %+v, want nothing", got)
	}
}

func TestMatchSeasonReturnsDuplicates(t *testing.T) {
	files := []storage.RemoteFile{
		video("Show S02E05 720p.mkv"),
		video("Show S02E05 1080p.mkv"),
	}

	got, err := NewEpisodeMatcher(false, 2).MatchSeason(context.Background(), files, "Season 2", seasonTwo)
	if err != nil {
		t.Fatalf("MatchSeason: %v", err)
	}
	if len(got.Resolved) != 2 {
		t.Fatalf("resolved %d, want 2", len(got.Resolved))
	}
	for _, r := range got.Resolved {
		if r.Season != 2 || r.Episode != 5 {
			t.Errorf("resolved %+v, want S02E05", r)
		}
	}
}

func TestMatchSeasonCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEpisodeMatcher(false, 1).MatchSeason(ctx, []storage.RemoteFile{video("Show S02E05.mkv")}, "Season 2", seasonTwo)
	if err == nil {
		t.Errorf("MatchSeason on cancelled context returned no error")
	}
}

func TestParseQuality(t *testing.T) {
	q := ParseQuality("The.Matrix.1999.2160p.UHD.BluRay.REMUX.HDR.HEVC-GROUP.mkv")
	if q.Resolution != "2160p" || q.Codec != "HEVC" || !q.HDR {
		t.Errorf("ParseQuality = %+v", q)
	}
	if q.Source != "BluRay" && q.Source != "REMUX" {
		t.Errorf("Source = %q", q.Source)
	}
}

func TestHasReleaseTag(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want bool
	}{
		{"Movie.2010.1080p.BluRay.REMUX.mkv", "REMUX", true},
		{"Movie.2010.1080p.bluray.mkv", "BluRay", true},
		{"Movie.2010.1080p.WEB-DL.mkv", "WEB-DL", true},
		{"Movie.2010.1080p.WEBRip.mkv", "WEB-DL", false},
		{"Remuxed.Memories.mkv", "REMUX", false},
		{"Movie.mkv", "", false},
	}
	for _, tt := range tests {
		if got := HasReleaseTag(tt.name, tt.tag); got != tt.want {
			t.Errorf("HasReleaseTag(%q, %q) = %v, want %v", tt.name, tt.tag, got, tt.want)
		}
	}
}
