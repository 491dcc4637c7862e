package chatlog

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	smartCandidates = 300
	embedBatch      = 100
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Search ranks entries against query: substring hits first (newest first), then
// fuzzy subsequence matches by edit distance.
func Search(entries []Entry, query string, n int) []Entry {
	query = strings.TrimSpace(query)
	if query == "" || n <= 0 {
		return nil
	}
	lowerQuery := strings.ToLower(query)

	var out []Entry
	taken := map[int]bool{}
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		if strings.Contains(strings.ToLower(entries[i].Text), lowerQuery) {
			out = append(out, entries[i])
			taken[i] = true
		}
	}
	if len(out) >= n {
		return out
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	ranks := fuzzy.RankFindNormalizedFold(query, texts)
	sort.Sort(ranks)
	for _, r := range ranks {
		if len(out) >= n {
			break
		}
		if taken[r.OriginalIndex] {
			continue
		}
		out = append(out, entries[r.OriginalIndex])
		taken[r.OriginalIndex] = true
	}
	return out
}

// SmartSearch ranks the most recent entries by embedding similarity to query.
// It falls back to Search when no embedder is available or embedding fails;
// the boolean reports whether the semantic ranking was used.
func SmartSearch(ctx context.Context, emb Embedder, entries []Entry, query string, n int) ([]Entry, bool) {
	if emb == nil || len(entries) == 0 || strings.TrimSpace(query) == "" {
		return Search(entries, query, n), false
	}
	if len(entries) > smartCandidates {
		entries = entries[len(entries)-smartCandidates:]
	}

	queryVec, err := emb.Embed(ctx, []string{query})
	if err != nil || len(queryVec) != 1 {
		return Search(entries, query, n), false
	}

	vectors := make([][]float32, 0, len(entries))
	for start := 0; start < len(entries); start += embedBatch {
		end := min(start+embedBatch, len(entries))
		texts := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			texts = append(texts, e.Text)
		}
		batch, err := emb.Embed(ctx, texts)
		if err != nil || len(batch) != len(texts) {
			return Search(entries, query, n), false
		}
		vectors = append(vectors, batch...)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(entries))
	for i, v := range vectors {
		scores[i] = scored{idx: i, score: Cosine(queryVec[0], v)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]Entry, 0, n)
	for _, s := range scores {
		if len(out) >= n {
			break
		}
		out = append(out, entries[s.idx])
	}
	return out, true
}

func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
