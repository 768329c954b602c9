package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

const (
	DefaultFetchTimeout = 15 * time.Second
	// demoTokenCount is the size of the demo set
	demoTokenCount = 3
)

// Orchestrator runs every configured SourceFetcher in parallel and merges
// their results.
type Orchestrator struct {
	logger   *logger.Logger
	fetchers []SourceFetcher
	filter   CollectionFilter
	timeout  time.Duration
	demoMode bool
}

func NewOrchestrator(fetchers []SourceFetcher, filter CollectionFilter, timeout time.Duration, demoMode bool, logger *logger.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Orchestrator{
		logger:   logger,
		fetchers: fetchers,
		filter:   filter,
		timeout:  timeout,
		demoMode: demoMode,
	}
}

// DemoMode reports whether empty results are replaced by the demo set.
func (o *Orchestrator) DemoMode() bool { return o.demoMode }

type fetchResult struct {
	index  int
	tokens []*models.Token
	err    error
}

// FetchAll returns the merged, deduplicated tokens of owner. Fetchers still
// running when the timeout elapses contribute nothing. An error wrapping
// models.ErrTotalFetchFailure is returned only when every fetcher failed; in
// demo mode the demo set is returned along with it.
func (o *Orchestrator) FetchAll(ctx context.Context, owner string) ([]*models.Token, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// Buffered so late fetchers never block once we stop listening
	results := make(chan fetchResult, len(o.fetchers))
	for i, f := range o.fetchers {
		go func(i int, f SourceFetcher) {
			tokens, err := f.Fetch(fetchCtx, owner, o.filter)
			results <- fetchResult{index: i, tokens: tokens, err: err}
		}(i, f)
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	perSource := make([][]*models.Token, len(o.fetchers))
	done := make([]bool, len(o.fetchers))
	var failed []string

collect:
	for pending := len(o.fetchers); pending > 0; pending-- {
		select {
		case res := <-results:
			done[res.index] = true
			name := o.fetchers[res.index].Name()
			if res.err != nil && fetchCtx.Err() == nil {
				o.logger.Warn("Fetcher failed", "fetcher", name, "owner", owner, "error", res.err)
				failed = append(failed, name)
				continue
			}
			if res.err != nil {
				o.logger.Info("Fetcher timed out", "fetcher", name, "owner", owner)
				continue
			}
			perSource[res.index] = res.tokens
		case <-timer.C:
			break collect
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	for i, ok := range done {
		if !ok {
			o.logger.Info("Fetcher timed out", "fetcher", o.fetchers[i].Name(), "owner", owner, "timeout", o.timeout)
		}
	}

	merged := Dedup(perSource...)

	if len(o.fetchers) > 0 && len(failed) == len(o.fetchers) {
		err := fmt.Errorf("%w: %s", models.ErrTotalFetchFailure, strings.Join(failed, ", "))
		if o.demoMode {
			return DemoTokens(), err
		}
		return nil, err
	}

	if len(merged) == 0 && o.demoMode {
		return DemoTokens(), nil
	}
	return merged, nil
}

// Dedup merges token lists in order, keeping the first token seen for each
// models.TokenKey.
func Dedup(lists ...[]*models.Token) []*models.Token {
	seen := make(map[string]struct{})
	merged := make([]*models.Token, 0)
	for _, list := range lists {
		for _, t := range list {
			if t == nil || t.TokenID == "" {
				continue
			}
			key := models.TokenKey(t.TokenID)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, t)
		}
	}
	return merged
}

// DemoTokens returns the fixed demo set.
func DemoTokens() []*models.Token {
	tokens := make([]*models.Token, demoTokenCount)
	for i := range tokens {
		tokens[i] = &models.Token{
			TokenID:        fmt.Sprintf("demo-token-%d", i),
			Name:           fmt.Sprintf("Demo NFT #%d", i+1),
			CollectionName: "Demo Collection",
			Standard:       "v2",
			Source:         "demo",
		}
	}
	return tokens
}

// IsDemo reports whether tokens is the demo set.
func IsDemo(tokens []*models.Token) bool {
	return len(tokens) > 0 && tokens[0].Source == "demo"
}
