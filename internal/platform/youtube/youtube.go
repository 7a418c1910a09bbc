package youtube

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

// Video is one catalog candidate returned from a search.
type Video struct {
	ID              string
	Title           string
	Description     string
	ThumbnailURL    string
	DurationSeconds int
}

// Finder is the video-catalog capability. An empty result with a nil error is
// a valid outcome (no key configured, or no hits); callers must not treat it
// as a failure.
type Finder interface {
	Search(ctx context.Context, query string, maxResults int64) ([]Video, error)
}

type finder struct {
	log *logger.Logger
	svc *yt.Service
}

func NewFinder(log *logger.Logger) (Finder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	serviceLog := log.With("service", "YouTubeFinder")

	apiKey := strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY"))
	if apiKey == "" {
		serviceLog.Warn("YOUTUBE_API_KEY not set; video search disabled")
		return &finder{log: serviceLog}, nil
	}

	svc, err := yt.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &finder{log: serviceLog, svc: svc}, nil
}

func (f *finder) Search(ctx context.Context, query string, maxResults int64) ([]Video, error) {
	if f.svc == nil {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	searchResp, err := f.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	if len(searchResp.Items) == 0 {
		return nil, nil
	}

	fromSearch := make([]Video, 0, len(searchResp.Items))
	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		v := Video{ID: item.Id.VideoId}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Description = item.Snippet.Description
			v.ThumbnailURL = thumbnailURL(item.Snippet.Thumbnails)
		}
		fromSearch = append(fromSearch, v)
		ids = append(ids, v.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Detail lookup enriches durations; on failure keep the search-phase
	// results rather than failing the whole call.
	detailResp, err := f.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		f.log.Warn("YouTube detail lookup failed, returning search results without durations", "error", err)
		return fromSearch, nil
	}

	out := make([]Video, 0, len(detailResp.Items))
	for _, item := range detailResp.Items {
		if item == nil || item.Id == "" {
			continue
		}
		v := Video{ID: item.Id}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Description = item.Snippet.Description
			v.ThumbnailURL = thumbnailURL(item.Snippet.Thumbnails)
		}
		if item.ContentDetails != nil {
			v.DurationSeconds = ParseISODuration(item.ContentDetails.Duration)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return fromSearch, nil
	}
	return out, nil
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	if t.High != nil && t.High.Url != "" {
		return t.High.Url
	}
	if t.Default != nil {
		return t.Default.Url
	}
	return ""
}

var isoDurationRe = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseISODuration converts a PT#H#M#S duration token to total seconds. Any
// missing component counts as zero.
func ParseISODuration(iso string) int {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	hours := atoiDefault(m[1])
	minutes := atoiDefault(m[2])
	seconds := atoiDefault(m[3])
	return hours*3600 + minutes*60 + seconds
}

func atoiDefault(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
