package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public TMDB v3 API endpoint.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// ImageBaseURL prefixes poster/backdrop/still paths.
const ImageBaseURL = "https://image.tmdb.org/t/p/original"

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("tmdb: not found")

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	Language          string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client is a TMDB API client
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new TMDB client
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  opts.BaseURL,
		language: opts.Language,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Movie represents a movie from TMDB
type Movie struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	Overview      string  `json:"overview"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	Popularity    float64 `json:"popularity"`
}

// Year extracts the year from the release date
func (m *Movie) Year() int {
	return yearOf(m.ReleaseDate)
}

// Show represents a TV show from TMDB
type Show struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
}

// Year extracts the year from the first air date
func (s *Show) Year() int {
	return yearOf(s.FirstAirDate)
}

// Season represents a TV season from TMDB
type Season struct {
	ID           int       `json:"id"`
	SeasonNumber int       `json:"season_number"`
	Name         string    `json:"name"`
	Episodes     []Episode `json:"episodes"`
}

// Episode represents a TV episode from TMDB
type Episode struct {
	ID            int    `json:"id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	StillPath     string `json:"still_path"`
}

// ShowDetails represents detailed show info including seasons
type ShowDetails struct {
	Show
	Seasons []struct {
		ID           int `json:"id"`
		SeasonNumber int `json:"season_number"`
		EpisodeCount int `json:"episode_count"`
	} `json:"seasons"`
}

// CastMember is one billed cast entry.
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// Credits holds the cast of a movie or show.
type Credits struct {
	Cast []CastMember `json:"cast"`
}

// Image is one entry of an images response.
type Image struct {
	FilePath    string  `json:"file_path"`
	VoteAverage float64 `json:"vote_average"`
	ISO6391     string  `json:"iso_639_1"`
}

// Images holds the artwork available for a title.
type Images struct {
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
}

// GetMovie fetches movie details by TMDB ID
func (c *Client) GetMovie(ctx context.Context, id int) (*Movie, error) {
	movie := &Movie{}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, movie); err != nil {
		return nil, err
	}
	return movie, nil
}

// GetShowDetails fetches detailed TV show info including seasons
func (c *Client) GetShowDetails(ctx context.Context, id int) (*ShowDetails, error) {
	details := &ShowDetails{}
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, details); err != nil {
		return nil, err
	}
	return details, nil
}

// GetSeason fetches season details including episodes
func (c *Client) GetSeason(ctx context.Context, showID int, seasonNumber int) (*Season, error) {
	season := &Season{}
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", showID, seasonNumber), nil, season); err != nil {
		return nil, err
	}
	return season, nil
}

// GetCredits fetches the cast for a movie ("movie") or show ("tv").
func (c *Client) GetCredits(ctx context.Context, kind string, id int) (*Credits, error) {
	credits := &Credits{}
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/credits", kind, id), nil, credits); err != nil {
		return nil, err
	}
	return credits, nil
}

// GetImages fetches artwork for a movie ("movie") or show ("tv").
func (c *Client) GetImages(ctx context.Context, kind string, id int) (*Images, error) {
	images := &Images{}
	params := url.Values{"include_image_language": {"en,null"}}
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/images", kind, id), params, images); err != nil {
		return nil, err
	}
	return images, nil
}

// SearchMovies searches for movies by title
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	var result struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", url.Values{"query": {query}}, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// SearchShows searches for TV shows by title
func (c *Client) SearchShows(ctx context.Context, query string) ([]Show, error) {
	var result struct {
		Results []Show `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", url.Values{"query": {query}}, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// get performs a rate-limited GET request and decodes the response
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v interface{}) error {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
