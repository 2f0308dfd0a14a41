package retrieval

import (
	"sort"

	"github.com/nstepanov/docqa/internal/index"
)

// normalizeScores maps raw arm scores to [0,1] with min-max scaling
// within the candidate set, removing the scale mismatch between cosine
// similarity and text-relevance ranks. A constant set (including a
// single candidate) normalizes to 1.0.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	if maxScore == minScore {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - minScore) / (maxScore - minScore)
	}
	return out
}

// fuse merges the two arms' hits into one ranking:
// fused = alpha*normalize(dense) + (1-alpha)*normalize(text), with a
// chunk missing from one arm contributing 0 for that arm. Chunks
// present in both arms are merged into one record before fusion. Ties
// break by both-arm presence, then higher dense score, then ascending
// chunk id, making the ordering fully deterministic.
func fuse(dense, text []index.Hit, alpha float64, topK int) []Chunk {
	merged := make(map[string]*Chunk, len(dense)+len(text))
	var order []string // insertion order, for reproducible iteration

	upsert := func(h index.Hit) *Chunk {
		id := h.DocID + "#" + h.ChunkID
		c, ok := merged[id]
		if !ok {
			c = &Chunk{
				DocID:    h.DocID,
				ChunkID:  h.ChunkID,
				Content:  h.Content,
				Metadata: h.Metadata,
			}
			merged[id] = c
			order = append(order, id)
		}
		return c
	}

	denseNorm := normalizeScores(scoresOf(dense))
	for i, h := range dense {
		c := upsert(h)
		c.DenseScore = h.Score
		c.FusedScore += alpha * denseNorm[i]
		c.Source = SourceDense
	}

	textNorm := normalizeScores(scoresOf(text))
	for i, h := range text {
		c := upsert(h)
		c.TextScore = h.Score
		c.FusedScore += (1 - alpha) * textNorm[i]
		if c.Source == SourceDense {
			c.Source = SourceBoth
		} else {
			c.Source = SourceText
		}
	}

	chunks := make([]Chunk, 0, len(order))
	for _, id := range order {
		chunks = append(chunks, *merged[id])
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].FusedScore != chunks[j].FusedScore {
			return chunks[i].FusedScore > chunks[j].FusedScore
		}
		// A chunk both arms agree on outranks a single-arm chunk at the
		// same fused score.
		iBoth, jBoth := chunks[i].Source == SourceBoth, chunks[j].Source == SourceBoth
		if iBoth != jBoth {
			return iBoth
		}
		if chunks[i].DenseScore != chunks[j].DenseScore {
			return chunks[i].DenseScore > chunks[j].DenseScore
		}
		return chunks[i].ID() < chunks[j].ID()
	})

	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}
	for i := range chunks {
		chunks[i].Rank = i + 1
	}
	return chunks
}

func scoresOf(hits []index.Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return scores
}
