package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/splitlearn/splitlearn-backend/internal/platform/gemini"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
	"github.com/splitlearn/splitlearn-backend/internal/platform/youtube"
)

const (
	queryMaxLen       = 100
	searchCandidates  = 10
	descriptionMaxLen = 200
)

// SubpointVideo ties a chosen video to the subpoint position it explains.
type SubpointVideo struct {
	SubpointIndex int
	Video         youtube.Video
}

// VideoPicker selects one video per subpoint. Every failure here is
// non-fatal: a subpoint without a video is an acceptable outcome, a failed
// extraction is not.
type VideoPicker struct {
	log    *logger.Logger
	finder youtube.Finder
	ai     gemini.Client
	pacer  *gemini.Pacer
	rerank bool
}

func NewVideoPicker(log *logger.Logger, finder youtube.Finder, ai gemini.Client, pacer *gemini.Pacer, rerank bool) *VideoPicker {
	return &VideoPicker{
		log:    log.With("service", "VideoPicker"),
		finder: finder,
		ai:     ai,
		pacer:  pacer,
		rerank: rerank,
	}
}

// BuildQuery composes the catalog search text for one subpoint, capped at
// 100 characters.
func BuildQuery(topicTitle, subpoint string) string {
	q := strings.TrimSpace(strings.TrimSpace(topicTitle) + " " + strings.TrimSpace(subpoint) + " tutorial explanation")
	if r := []rune(q); len(r) > queryMaxLen {
		q = string(r[:queryMaxLen])
	}
	return q
}

// PickForSubpoints runs a search per subpoint and picks the most relevant
// candidate, preferring videos not already chosen for an earlier subpoint.
// When the next-best alternate is also taken, the duplicate is accepted.
func (p *VideoPicker) PickForSubpoints(ctx context.Context, topicTitle string, subpoints []string) []SubpointVideo {
	used := make(map[string]bool)
	out := make([]SubpointVideo, 0, len(subpoints))
	for i, sp := range subpoints {
		candidates, err := p.finder.Search(ctx, BuildQuery(topicTitle, sp), searchCandidates)
		if err != nil {
			p.log.Warn("video search failed, subpoint keeps no video",
				"subpoint_index", i, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		ordered := candidates
		if p.rerank {
			if ranked := p.rankCandidates(ctx, topicTitle, sp, candidates); len(ranked) > 0 {
				ordered = ranked
			}
		}

		pick := ordered[0]
		if used[pick.ID] && len(ordered) > 1 && !used[ordered[1].ID] {
			pick = ordered[1]
		}
		used[pick.ID] = true
		out = append(out, SubpointVideo{SubpointIndex: i, Video: pick})
	}
	return out
}

// PickAlternatives returns up to n fresh candidates for a topic, excluding
// already-shown video IDs.
func (p *VideoPicker) PickAlternatives(ctx context.Context, query string, excludeIDs []string, n int) ([]youtube.Video, error) {
	if r := []rune(query); len(r) > queryMaxLen {
		query = string(r[:queryMaxLen])
	}
	candidates, err := p.finder.Search(ctx, query, searchCandidates)
	if err != nil {
		return nil, stageErr(KindVideoSearch, err)
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := make([]youtube.Video, 0, n)
	for _, c := range candidates {
		if excluded[c.ID] {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// rankCandidates asks the model to order candidates by teaching relevance.
// Any failure degrades silently to catalog order.
func (p *VideoPicker) rankCandidates(ctx context.Context, topicTitle, subpoint string, candidates []youtube.Video) []youtube.Video {
	var b strings.Builder
	fmt.Fprintf(&b, `Rank these videos by how well they teach "%s" in the context of "%s".
Return STRICT JSON only: {"ranked": [best index, next, ...]} using the numeric indices below.
`, strings.TrimSpace(subpoint), strings.TrimSpace(topicTitle))
	for i, c := range candidates {
		desc := c.Description
		if r := []rune(desc); len(r) > descriptionMaxLen {
			desc = string(r[:descriptionMaxLen])
		}
		fmt.Fprintf(&b, "%d. %s - %s\n", i, c.Title, desc)
	}

	res, err := p.pacer.Do(ctx, func(ctx context.Context) (gemini.Result, error) {
		return p.ai.Generate(ctx, []gemini.Part{{Text: b.String()}}, gemini.GenerateOptions{
			MaxOutputTokens:  256,
			ResponseMIMEType: "application/json",
		})
	})
	if err != nil {
		p.log.Warn("video rerank failed, keeping catalog order", "error", err)
		return nil
	}
	indices, ok := parseRankedJSON(res.Text)
	if !ok {
		return nil
	}

	seen := make(map[int]bool, len(indices))
	ordered := make([]youtube.Video, 0, len(candidates))
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		ordered = append(ordered, candidates[idx])
	}
	for i, c := range candidates {
		if !seen[i] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}
