// Package scrapers turns actor runs of the scraping vendor into profile records
// and post lists.
package scrapers

import (
	"context"
	"encoding/json"

	"birdpage/pkg/apify"
)

// ActorRunner runs a single actor and returns its dataset items.
type ActorRunner interface {
	RunActor(ctx context.Context, actorID string, input any, opts apify.DatasetOptions) ([]json.RawMessage, error)
}
