package optimizer

import "context"

// Recommender is an optional external re-ranking collaborator. Given a
// ranked leg it may suggest a preferred candidate identifier. The optimizer
// records the suggestion on the leg without altering its own selection, so
// a misbehaving recommender can never degrade routing.
type Recommender interface {
	Recommend(ctx context.Context, leg LegResult) (string, error)
}

// RecommenderFunc adapts a function to the Recommender interface.
type RecommenderFunc func(ctx context.Context, leg LegResult) (string, error)

// Recommend calls f.
func (f RecommenderFunc) Recommend(ctx context.Context, leg LegResult) (string, error) {
	return f(ctx, leg)
}
