package campaign

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jh9098/gtoapp/internal/fetch"
	"github.com/jh9098/gtoapp/internal/metrics"
)

// csqPattern matches the data attribute the index page embeds in its script
// blocks for every publicly advertised campaign.
var csqPattern = regexp.MustCompile(`data-csq=["']?(\d+)`)

// Resolver extracts the public campaign ID set from the listing index page.
type Resolver struct {
	fetcher  fetch.Fetcher
	indexURL string
	policy   RetryPolicy
	logger   *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(fetcher fetch.Fetcher, indexURL string, policy RetryPolicy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:  fetcher,
		indexURL: indexURL,
		policy:   policy,
		logger:   logger,
	}
}

// Resolve fetches the index page and unions the integer matches across all
// script blocks. It retries transport failures and empty extractions up to
// the policy's attempt limit, waiting the fixed backoff in between, and
// returns ErrDirectoryEmpty once attempts are exhausted.
func (r *Resolver) Resolve(ctx context.Context, identity string) (DirectorySet, error) {
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		set, err := r.resolveOnce(ctx, identity)
		if err == nil && len(set) > 0 {
			metrics.RecordResolution(true)
			return set, nil
		}
		if err != nil {
			r.logger.Warn("directory fetch failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		if werr := r.policy.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("directory retry wait: %w", werr)
		}
	}
	metrics.RecordResolution(false)
	return nil, ErrDirectoryEmpty
}

func (r *Resolver) resolveOnce(ctx context.Context, identity string) (DirectorySet, error) {
	page, err := r.fetcher.Fetch(ctx, r.indexURL, identity)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	set := DirectorySet{}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, match := range csqPattern.FindAllStringSubmatch(s.Text(), -1) {
			n, convErr := strconv.Atoi(match[1])
			if convErr != nil {
				continue
			}
			set.Add(ID(n))
		}
	})
	return set, nil
}
