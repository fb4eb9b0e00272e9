package usecase

import (
	"math"
	"sort"

	"github.com/didembi/documind/internal/core/domain"
)

// CosineSimilarity is dot(a,b)/(|a||b|). Vectors of different length or
// with a zero norm have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankBySimilarity scores chunks against query and returns the best limit
// of them. Ties keep a deterministic (document, ordinal) order.
func rankBySimilarity(query []float32, chunks []domain.Chunk, limit int, threshold *float64) []domain.ScoredChunk {
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		similarity := CosineSimilarity(query, chunk.Embedding)
		if threshold != nil && similarity < *threshold {
			continue
		}
		chunk.Embedding = nil
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Similarity: similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		if scored[i].DocumentID != scored[j].DocumentID {
			return scored[i].DocumentID < scored[j].DocumentID
		}
		return scored[i].Index < scored[j].Index
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
