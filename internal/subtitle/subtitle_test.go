package subtitle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/storage"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		file     string
		code     string
		detected bool
	}{
		{"Movie.2010.en.srt", "en", true},
		{"Movie.2010.eng.srt", "en", true},
		{"Movie.2010.English.srt", "en", true},
		{"Movie.2010.ru.forced.srt", "ru", true},
		{"Movie.2010.pt.ass", "pt", true},
		{"/Subs/French/1.srt", "fr", true},
		{"/subs/rus/movie.srt", "ru", true},
		{"Movie.2010.srt", "unknown", false},
		{"Movie.2010.xx.srt", "unknown", false},
	}

	for _, tt := range tests {
		code, _, ok := DetectLanguage(tt.file)
		if code != tt.code || ok != tt.detected {
			t.Errorf("DetectLanguage(%q) = %q, %v; want %q, %v", tt.file, code, ok, tt.code, tt.detected)
		}
	}
}

func TestMissingLanguages(t *testing.T) {
	got := MissingLanguages([]string{"en", "RU", "tr"}, map[string]bool{"ru": true})
	assert.Equal(t, []string{"en", "tr"}, got)
	assert.Nil(t, MissingLanguages([]string{"en"}, map[string]bool{"en": true}))
}

func TestFetchTaskIsDeterministic(t *testing.T) {
	item := Item{Type: ItemTypeEpisode, ID: 42, Languages: []string{"en"}}
	task, err := NewFetchTask(item, "subtitles")
	require.NoError(t, err)
	assert.Equal(t, TaskFetch, task.Type())
	assert.JSONEq(t, `{"item_type":"episode","item_id":42,"languages":["en"]}`, string(task.Payload()))
	assert.Equal(t, "subtitle:episode:42", TaskID(item))
}

type recordingScheduler struct {
	items []Item
	fail  map[int64]bool
}

func (r *recordingScheduler) ScheduleFetch(_ context.Context, item Item) error {
	if r.fail[item.ID] {
		return errors.New("redis down")
	}
	r.items = append(r.items, item)
	return nil
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := library.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func TestScheduleMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Create(ctx, &Subtitle{ItemType: ItemTypeMovie, ItemID: 1, LanguageCode: "en", Format: "srt"}))
	require.NoError(t, repo.Create(ctx, &Subtitle{ItemType: ItemTypeMovie, ItemID: 2, LanguageCode: "en", Format: "srt"}))
	require.NoError(t, repo.Create(ctx, &Subtitle{ItemType: ItemTypeMovie, ItemID: 2, LanguageCode: "ru", Format: "srt"}))

	sched := &recordingScheduler{fail: map[int64]bool{4: true}}
	svc := NewService(repo, sched, []string{"en", " RU "})

	n, err := svc.ScheduleMissing(ctx, ItemTypeMovie, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sched.items, 2)
	assert.Equal(t, Item{Type: ItemTypeMovie, ID: 1, Languages: []string{"ru"}}, sched.items[0])
	assert.Equal(t, Item{Type: ItemTypeMovie, ID: 3, Languages: []string{"en", "ru"}}, sched.items[1])
}

func TestScheduleMissingWithoutRequiredLanguages(t *testing.T) {
	sched := &recordingScheduler{}
	svc := NewService(newTestRepo(t), sched, nil)

	n, err := svc.ScheduleMissing(context.Background(), ItemTypeEpisode, []int64{1, 2})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sched.items)
}

func TestRecordSidecars(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, NewLogScheduler(), []string{"en"})

	video := storage.RemoteFile{ID: "/movies/Heat.1995.mkv", Name: "Heat.1995.mkv", ParentID: "/movies"}
	siblings := []storage.RemoteFile{
		video,
		{ID: "/movies/Heat.1995.en.srt", Name: "Heat.1995.en.srt", ParentID: "/movies", Size: 10},
		{ID: "/movies/Heat.1995.de.ass", Name: "Heat.1995.de.ass", ParentID: "/movies", Size: 20},
		{ID: "/movies/Heat.1995.srt", Name: "Heat.1995.srt", ParentID: "/movies"},
		{ID: "/movies/Other.en.srt", Name: "Other.en.srt", ParentID: "/movies"},
		{ID: "/other/Heat.1995.fr.srt", Name: "Heat.1995.fr.srt", ParentID: "/other"},
	}

	n, err := svc.RecordSidecars(ctx, ItemTypeMovie, 7, video, siblings)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	subs, err := repo.GetByItem(ctx, ItemTypeMovie, 7)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "de", subs[0].LanguageCode)
	assert.Equal(t, "ass", subs[0].Format)
	assert.Equal(t, "en", subs[1].LanguageCode)
	assert.Equal(t, "/movies/Heat.1995.en.srt", subs[1].FilePath)

	// Re-recording upserts.
	n, err = svc.RecordSidecars(ctx, ItemTypeMovie, 7, video, siblings)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	subs, err = repo.GetByItem(ctx, ItemTypeMovie, 7)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, NewLogScheduler(), []string{"en"})

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, repo.Create(ctx, &Subtitle{
			ItemType: ItemTypeEpisode, ItemID: id, LanguageCode: "en", Format: "srt",
			FilePath: fmt.Sprintf("/tv/e%d.en.srt", id),
		}))
	}
	require.NoError(t, repo.Create(ctx, &Subtitle{
		ItemType: ItemTypeMovie, ItemID: 1, LanguageCode: "en", Format: "srt", FilePath: "/movies/m1.en.srt",
	}))

	n, err := svc.Purge(ctx, ItemTypeEpisode, []int64{1, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for id, want := range map[int64]int{1: 0, 2: 1, 3: 0} {
		subs, err := repo.GetByItem(ctx, ItemTypeEpisode, id)
		require.NoError(t, err)
		assert.Len(t, subs, want, "episode %d", id)
	}
	movie, err := repo.GetByItem(ctx, ItemTypeMovie, 1)
	require.NoError(t, err)
	assert.Len(t, movie, 1, "other item types are untouched")
}
