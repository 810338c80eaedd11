package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"github.com/shapedtime/cloudlib/internal/identify"
	"github.com/shapedtime/cloudlib/internal/library"
	"github.com/shapedtime/cloudlib/internal/metadata"
	"github.com/shapedtime/cloudlib/internal/storage"
	"github.com/shapedtime/cloudlib/internal/subtitle"
)

func fixedNow() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

type fakeMeta struct {
	mu          sync.Mutex
	titles      map[string][]metadata.Title
	details     map[int]*metadata.Details
	episodes    map[int][]metadata.Episode
	invalidated []int
	down        bool
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		titles: map[string][]metadata.Title{
			"movie:the matrix": {
				{ExternalID: 603, Name: "The Matrix", Year: 1999, Popularity: 80, HasBackdrop: true},
				{ExternalID: 604, Name: "The Matrix Reloaded", Year: 2003, Popularity: 50, HasBackdrop: true},
				{ExternalID: 624860, Name: "The Matrix Resurrections", Year: 2021, Popularity: 60, HasBackdrop: true},
			},
			"movie:heat": {{ExternalID: 949, Name: "Heat", Year: 1995, Popularity: 40, HasBackdrop: true}},
			"show:the office":    {{ExternalID: 2316, Name: "The Office", Year: 2005, Popularity: 90, HasBackdrop: true}},
			"show:the office us": {{ExternalID: 2316, Name: "The Office", Year: 2005, Popularity: 90, HasBackdrop: true}},
		},
		details: map[int]*metadata.Details{
			603: {ExternalID: 603, Kind: metadata.KindMovie, Name: "The Matrix", Year: 1999, Cast: []string{"Keanu Reeves"}},
			949: {ExternalID: 949, Kind: metadata.KindMovie, Name: "Heat", Year: 1995},
			2316: {
				ExternalID: 2316, Kind: metadata.KindShow, Name: "The Office", Year: 2005,
				Seasons: []metadata.SeasonSummary{{Number: 1, EpisodeCount: 2}, {Number: 2, EpisodeCount: 2}},
			},
		},
		episodes: map[int][]metadata.Episode{
			2316: {
				{Season: 1, Number: 1, Title: "Pilot", Overview: "Meet the staff."},
				{Season: 1, Number: 2, Title: "Diversity Day"},
				{Season: 2, Number: 1, Title: "The Dundies"},
				{Season: 2, Number: 2, Title: "Sexual Harassment"},
			},
		},
	}
}

func (f *fakeMeta) SearchTitles(ctx context.Context, kind metadata.Kind, name string) ([]metadata.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.titles[string(kind)+":"+name], nil
}

func (f *fakeMeta) GetDetails(ctx context.Context, kind metadata.Kind, externalID int) (*metadata.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("connection refused")
	}
	d, ok := f.details[externalID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeMeta) GetEpisodeList(ctx context.Context, externalID int) ([]metadata.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errors.New("connection refused")
	}
	return append([]metadata.Episode(nil), f.episodes[externalID]...), nil
}

func (f *fakeMeta) GetImages(ctx context.Context, kind metadata.Kind, externalID int, name string) (*metadata.Images, error) {
	return &metadata.Images{PosterURL: "https://img/" + name + ".jpg"}, nil
}

func (f *fakeMeta) Invalidate(externalID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, externalID)
	return nil
}

type recordingScheduler struct {
	mu    sync.Mutex
	items []subtitle.Item
}

func (r *recordingScheduler) ScheduleFetch(_ context.Context, item subtitle.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

type harness struct {
	fs       webdav.FileSystem
	provider *storage.FSProvider
	store    *library.Store
	meta     *fakeMeta
	sched    *recordingScheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := library.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fsys := webdav.NewMemFS()
	h := &harness{
		fs:       fsys,
		provider: storage.NewFSProvider(fsys, 2),
		store:    library.NewStore(db),
		meta:     newFakeMeta(),
		sched:    &recordingScheduler{},
	}
	h.mkdir(t, "/movies")
	h.mkdir(t, "/shows")
	return h
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	if opts.MovieRoots == nil && opts.ShowRoots == nil {
		opts.MovieRoots = []string{"/movies"}
		opts.ShowRoots = []string{"/shows"}
	}
	opts.Workers = 2
	opts.Now = fixedNow
	subs := subtitle.NewService(subtitle.NewRepository(h.store.DB().DB), h.sched, []string{"en"})
	return New(h.provider, h.meta, h.store, subs, nil, opts)
}

func (h *harness) mkdir(t *testing.T, dir string) {
	t.Helper()
	cur := ""
	for _, p := range strings.Split(strings.Trim(dir, "/"), "/") {
		if p == "" {
			continue
		}
		cur += "/" + p
		if err := h.fs.Mkdir(context.Background(), cur, 0755); err != nil && !errors.Is(err, os.ErrExist) {
			require.NoError(t, err)
		}
	}
}

func (h *harness) write(t *testing.T, name string, size int) {
	t.Helper()
	h.mkdir(t, path.Dir(name))
	f, err := h.fs.OpenFile(context.Background(), name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, size))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func (h *harness) exists(t *testing.T, name string) bool {
	t.Helper()
	f, err := h.provider.GetFile(context.Background(), name)
	require.NoError(t, err)
	return f != nil
}

const officeDir = "/shows/The Office (2005)"

func (h *harness) seedLibrary(t *testing.T) {
	h.write(t, "/movies/The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv", 100)
	h.write(t, "/movies/The.Matrix.1999.1080p.BluRay.x264-GROUP.en.srt", 5)
	h.write(t, "/movies/Unknown.Thing.2004.mkv", 50)
	h.write(t, "/movies/sample.mkv", 1)
	h.write(t, officeDir+"/Season 1/The.Office.S01E01.Pilot.mkv", 10)
	h.write(t, officeDir+"/Season 1/The.Office.S01E02.Diversity.Day.mkv", 11)
	h.write(t, officeDir+"/Season 2/The Office 2x01 The Dundies.mkv", 12)
	h.write(t, officeDir+"/Extras/Bloopers.mkv", 13)
}

func TestRunIngestsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLibrary(t)
	o := h.orchestrator(Options{})

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 1, rep.MoviesMatched)
	assert.Equal(t, 1, rep.MoviesUnresolved)
	assert.Equal(t, 1, rep.ShowsMatched)
	assert.Equal(t, 1, rep.ShowsReconciled)
	// movie media+video, show media+folder, three episodes
	assert.Equal(t, 7, rep.Created)
	assert.Equal(t, 7, rep.Writes())
	assert.Equal(t, 3, rep.SubtitlesScheduled)

	movie, err := h.store.Media.GetByExternalID(ctx, 603, library.MediaKindMovie)
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, []string{"Keanu Reeves"}, movie.Cast)
	assert.Equal(t, "https://img/The Matrix.jpg", movie.PosterURL)

	show, err := h.store.Media.GetByExternalID(ctx, 2316, library.MediaKindShow)
	require.NoError(t, err)
	require.NotNil(t, show)

	eps, err := h.store.Episodes.ListByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 3)
	assert.Equal(t, "Pilot", eps[0].Title)
	assert.Equal(t, "Meet the staff.", eps[0].Overview)
	assert.Equal(t, "Diversity Day", eps[1].Title)
	assert.Equal(t, library.EpisodeKey{Season: 2, Episode: 1}, eps[2].Key())
	assert.Equal(t, "The Dundies", eps[2].Title)

	second, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Writes(), "second run must not touch the catalog")
	assert.Equal(t, 1, second.NewFiles, "only the unresolved movie is retried")
	assert.Equal(t, 1, second.MoviesUnresolved)
}

func TestRunFastModeSkipsCompleteShows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLibrary(t)
	h.write(t, officeDir+"/Season 2/The Office 2x02 Sexual Harassment.mkv", 14)
	o := h.orchestrator(Options{})

	_, err := o.Run(ctx)
	require.NoError(t, err)

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ShowsSkipped)
	assert.Zero(t, rep.ShowsReconciled)

	thorough := h.orchestrator(Options{Thorough: true})
	rep, err = thorough.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ShowsReconciled)
	assert.Zero(t, rep.Writes())
}

func TestRunConfigurationErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator(Options{MovieRoots: []string{}, ShowRoots: []string{}}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoRoots)

	_, err = h.orchestrator(Options{MovieRoots: []string{"/nope"}}).Run(context.Background())
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestRunRejectsOverlap(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(Options{})

	release, err := o.lock.acquire()
	require.NoError(t, err)

	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	release()
	_, err = o.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunFileLockAcrossOrchestrators(t *testing.T) {
	h := newHarness(t)
	lockPath := path.Join(t.TempDir(), "scan.lock")
	a := h.orchestrator(Options{LockPath: lockPath})
	b := h.orchestrator(Options{LockPath: lockPath})

	release, err := a.lock.acquire()
	require.NoError(t, err)
	defer release()

	_, err = b.Run(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestRunMetadataOutageLeavesFilesForNextScan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLibrary(t)
	h.meta.down = true
	o := h.orchestrator(Options{})

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Writes())
	assert.Equal(t, 2, rep.MoviesUnresolved)

	h.meta.down = false
	rep, err = o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.MoviesMatched)
	assert.Equal(t, 7, rep.Created)
}

// missingDirFS reports one folder as gone, as if it were removed while a
// scan was walking its parent.
type missingDirFS struct {
	webdav.FileSystem
	dir string
}

func (m *missingDirFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if name == m.dir {
		return nil, os.ErrNotExist
	}
	return m.FileSystem.OpenFile(ctx, name, flag, perm)
}

func TestRunMovieRootSurvivesVanishedFolder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, "/movies/Heat (1995)/Heat.1995.mkv", 10)
	h.write(t, "/movies/The Matrix (1999)/The.Matrix.1999.mkv", 10)
	h.provider = storage.NewFSProvider(&missingDirFS{FileSystem: h.fs, dir: "/movies/The Matrix (1999)"}, 2)
	o := h.orchestrator(Options{MovieRoots: []string{"/movies"}})

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.MoviesMatched)

	heat, err := h.store.Media.GetByExternalID(ctx, 949, library.MediaKindMovie)
	require.NoError(t, err)
	assert.NotNil(t, heat)
	matrix, err := h.store.Media.GetByExternalID(ctx, 603, library.MediaKindMovie)
	require.NoError(t, err)
	assert.Nil(t, matrix)
}

// Scenario: same title, identical name and size, different location.
func TestRunDuplicateMovie(t *testing.T) {
	for _, destructive := range []bool{false, true} {
		ctx := context.Background()
		h := newHarness(t)
		h.write(t, "/movies/a/Heat.1995.mkv", 10)
		o := h.orchestrator(Options{AllowDestructiveCleanup: destructive})

		_, err := o.Run(ctx)
		require.NoError(t, err)

		h.write(t, "/movies/b/Heat.1995.mkv", 10)
		rep, err := o.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Conflicts)
		assert.Zero(t, rep.Writes())

		assert.True(t, h.exists(t, "/movies/a/Heat.1995.mkv"))
		assert.Equal(t, !destructive, h.exists(t, "/movies/b/Heat.1995.mkv"), "destructive=%v", destructive)
	}
}

func TestRunReplacesWithPreferredRelease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, "/movies/Heat.1995.1080p.WEB-DL.mkv", 10)
	o := h.orchestrator(Options{AllowDestructiveCleanup: true})

	_, err := o.Run(ctx)
	require.NoError(t, err)

	h.write(t, "/movies/Heat.1995.2160p.REMUX.mkv", 40)
	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.FilesDeleted)
	assert.False(t, h.exists(t, "/movies/Heat.1995.1080p.WEB-DL.mkv"))

	v, err := h.store.Videos.GetByLocation(ctx, "/movies/Heat.1995.2160p.REMUX.mkv")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(40), v.SizeBytes)
}

func TestRunRepointsStaleLocation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, "/movies/old/Heat.1995.mkv", 10)
	o := h.orchestrator(Options{})

	_, err := o.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, h.fs.Rename(ctx, "/movies/old", "/movies/new"))
	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Zero(t, rep.Conflicts)

	v, err := h.store.Videos.GetByLocation(ctx, "/movies/new/Heat.1995.mkv")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestRunSecondFolderAttachesToShow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, "/shows/The Office/Season 1/The.Office.S01E01.mkv", 10)
	h.write(t, "/shows/The.Office.US/Season 2/The.Office.S02E01.mkv", 10)
	o := h.orchestrator(Options{ShowRoots: []string{"/shows"}})

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.ShowsMatched)

	shows, err := h.store.Media.ListByKind(ctx, library.MediaKindShow)
	require.NoError(t, err)
	require.Len(t, shows, 1)

	folders, err := h.store.Folders.GetByMedia(ctx, shows[0].ID)
	require.NoError(t, err)
	assert.Len(t, folders, 2)

	n, err := h.store.Episodes.CountByShow(ctx, shows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunDuplicateEpisodeFiles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, officeDir+"/Season 1/The.Office.S01E01.mkv", 10)
	h.write(t, officeDir+"/Season 1/copy/The.Office.S01E01.mkv", 10)
	o := h.orchestrator(Options{ShowRoots: []string{"/shows"}, AllowDestructiveCleanup: true})

	rep, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Conflicts)
	assert.Equal(t, 1, rep.FilesDeleted)
	assert.True(t, h.exists(t, officeDir+"/Season 1/The.Office.S01E01.mkv"))
	assert.False(t, h.exists(t, officeDir+"/Season 1/copy/The.Office.S01E01.mkv"))

	show, err := h.store.Media.GetByExternalID(ctx, 2316, library.MediaKindShow)
	require.NoError(t, err)
	eps, err := h.store.Episodes.ListByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, officeDir+"/Season 1/The.Office.S01E01.mkv", eps[0].RemoteVideoID)
}

func TestRescanShow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedLibrary(t)
	o := h.orchestrator(Options{})

	_, err := o.Run(ctx)
	require.NoError(t, err)
	show, err := h.store.Media.GetByExternalID(ctx, 2316, library.MediaKindShow)
	require.NoError(t, err)

	subs := subtitle.NewRepository(h.store.DB().DB)
	before, err := h.store.Episodes.ListByShow(ctx, show.ID)
	require.NoError(t, err)
	for _, ep := range before {
		require.NoError(t, subs.Create(ctx, &subtitle.Subtitle{
			ItemType: subtitle.ItemTypeEpisode, ItemID: ep.ID, LanguageCode: "fr", Format: "srt",
			FilePath: fmt.Sprintf("/subs/%d.fr.srt", ep.ID),
		}))
	}

	// Move one episode, drop another, retitle a third upstream.
	require.NoError(t, h.fs.Rename(ctx,
		officeDir+"/Season 1/The.Office.S01E02.Diversity.Day.mkv",
		officeDir+"/Season 1/The Office - 1x02.mkv"))
	require.NoError(t, h.fs.RemoveAll(ctx, officeDir+"/Season 2"))
	h.meta.episodes[2316][0].Title = "Pilot (Extended)"

	sr, err := o.RescanShow(ctx, show.ID, true)
	require.NoError(t, err)
	assert.Empty(t, sr.Skipped)
	assert.Equal(t, 1, sr.Created)
	assert.Equal(t, 1, sr.Updated)
	assert.Equal(t, 2, sr.Deleted)
	assert.Equal(t, []int{2316}, h.meta.invalidated)

	eps, err := h.store.Episodes.ListByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, "Pilot (Extended)", eps[0].Title)
	assert.Equal(t, officeDir+"/Season 1/The Office - 1x02.mkv", eps[1].RemoteVideoID)

	// Subtitle rows follow their episodes.
	kept := map[int64]bool{}
	for _, ep := range eps {
		kept[ep.ID] = true
	}
	for _, ep := range before {
		rows, err := subs.GetByItem(ctx, subtitle.ItemTypeEpisode, ep.ID)
		require.NoError(t, err)
		if kept[ep.ID] {
			assert.Len(t, rows, 1, "episode %d keeps its subtitles", ep.ID)
		} else {
			assert.Empty(t, rows, "episode %d was deleted", ep.ID)
		}
	}

	_, err = o.RescanShow(ctx, 9999, true)
	assert.ErrorIs(t, err, library.ErrMediaNotFound)
}

func TestRescanShowPlaceholders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.write(t, officeDir+"/Season 1/The.Office.S01E01.mkv", 10)
	h.write(t, officeDir+"/Season 1/The.Office.S01E09.mkv", 10)
	h.write(t, officeDir+"/Season 1/behind the office.mkv", 10)

	strict := h.orchestrator(Options{ShowRoots: []string{"/shows"}})
	rep, err := strict.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Created)

	show, err := h.store.Media.GetByExternalID(ctx, 2316, library.MediaKindShow)
	require.NoError(t, err)

	admit := h.orchestrator(Options{ShowRoots: []string{"/shows"}, AdmitPlaceholders: true})
	sr, err := admit.RescanShow(ctx, show.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sr.Created)
	assert.Equal(t, 2, sr.Placeholders)

	eps, err := h.store.Episodes.ListByShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, eps, 3)
	assert.False(t, eps[0].IsPlaceholder())
	assert.Equal(t, 9, eps[1].EpisodeNumber)
	assert.True(t, eps[1].IsPlaceholder())
	assert.Equal(t, 10, eps[2].EpisodeNumber)
	assert.True(t, eps[2].IsPlaceholder())
}

func TestDiffEpisodes(t *testing.T) {
	persisted := []*library.Episode{
		{ID: 1, SeasonNumber: 1, EpisodeNumber: 1, RemoteVideoID: "/a", Title: "Pilot"},
		{ID: 2, SeasonNumber: 1, EpisodeNumber: 2, RemoteVideoID: "/b", Title: "Two"},
		{ID: 3, SeasonNumber: 1, EpisodeNumber: 3, RemoteVideoID: "/c"},
		{ID: 4, SeasonNumber: 1, EpisodeNumber: 4, RemoteVideoID: "/d", Title: "Four"},
	}
	placed := func(season, episode int, loc, title string) identify.ResolvedEpisode {
		return identify.ResolvedEpisode{
			File:    storage.RemoteFile{ID: loc, Name: path.Base(loc)},
			Season:  season,
			Episode: episode,
			Title:   title,
		}
	}
	winners := map[library.EpisodeKey]identify.ResolvedEpisode{
		{Season: 1, Episode: 1}: placed(1, 1, "/a", "Pilot"),
		{Season: 1, Episode: 2}: placed(1, 2, "/b2", "Two"),
		{Season: 1, Episode: 3}: placed(1, 3, "/c", "Three"),
		{Season: 1, Episode: 5}: placed(1, 5, "/e", "Five"),
	}

	changes := diffEpisodes(7, winners, persisted)
	assert.ElementsMatch(t, []int64{2, 4}, changes.Deletes)
	require.Len(t, changes.Updates, 1)
	assert.Equal(t, int64(3), changes.Updates[0].ID)
	assert.Equal(t, "Three", changes.Updates[0].Title)
	assert.Equal(t, "/c", changes.Updates[0].RemoteVideoID)
	require.Len(t, changes.Creates, 2)
	assert.Equal(t, "/b2", changes.Creates[0].RemoteVideoID)
	assert.Equal(t, 5, changes.Creates[1].EpisodeNumber)
	assert.Equal(t, int64(7), changes.Creates[1].ShowID)

	assert.True(t, diffEpisodes(7, nil, nil).Empty())
}
