package daily

import (
	"context"
	"time"

	"auracal/internal/model"
)

// Provider supplies the daily payload and its banner image.
//
// Fetch is all-or-nothing: it either returns a complete, validated
// DailyInfo or an error. GenerateBanner is best effort; a nil image with a
// nil error means "no banner".
type Provider interface {
	Fetch(ctx context.Context, today time.Time) (model.DailyInfo, error)
	GenerateBanner(ctx context.Context, info model.DailyInfo) ([]byte, error)
}

// News categories requested from the provider, in display order.
var NewsCategories = []string{
	"世界政治新闻",
	"世界社会新闻",
	"世界文娱新闻",
	"中国社会新闻",
	"中国文娱新闻",
}
