package assessment

import (
	"math/rand/v2"

	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/model"
)

// DefaultRoundSize is the number of questions drawn per round.
const DefaultRoundSize = 7

// Sample draws up to count distinct questions of difficulty d from b in
// random order. A bank with fewer matching questions yields all of them.
// A nil rng uses the process-wide random source.
func Sample(b *bank.Bank, d model.Difficulty, count int, rng *rand.Rand) []model.Question {
	pool := b.ByDifficulty(d)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count < 0 {
		count = 0
	}
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool
}
