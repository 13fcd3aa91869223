package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const indexURL = "https://example.test/usr"

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestResolveUnionsAcrossScripts(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages[indexURL] = `<html><body>
<script>render([{sel: 'a[data-csq="101"]'}, {sel: 'a[data-csq=102]'}]);</script>
<script>bind("div", 'data-csq="103"');</script>
<script>console.log("no ids here");</script>
</body></html>`

	resolver := NewResolver(fetcher, indexURL, testPolicy(), nil)
	set, err := resolver.Resolve(context.Background(), "cookie")
	require.NoError(t, err)
	require.Equal(t, DirectorySet{101: {}, 102: {}, 103: {}}, set)
}

func TestResolveRetriesTransportFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[indexURL] = 2
	fetcher.pages[indexURL] = `<script>var x = 'data-csq="7"';</script>`

	resolver := NewResolver(fetcher, indexURL, testPolicy(), nil)
	set, err := resolver.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, DirectorySet{7: {}}, set)
	require.Equal(t, 3, fetcher.Calls())
}

func TestResolveFailsAfterExhaustingAttempts(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[indexURL] = 5

	resolver := NewResolver(fetcher, indexURL, testPolicy(), nil)
	_, err := resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrDirectoryEmpty)
	require.Equal(t, 3, fetcher.Calls())
}

func TestResolveTreatsZeroMatchesAsFailure(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages[indexURL] = `<script>console.log("nothing public");</script>`

	resolver := NewResolver(fetcher, indexURL, testPolicy(), nil)
	_, err := resolver.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrDirectoryEmpty)
	require.Equal(t, 3, fetcher.Calls())
}

func TestResolveStopsWhenContextCanceled(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[indexURL] = 5

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewResolver(fetcher, indexURL, RetryPolicy{MaxAttempts: 3, Delay: time.Minute}, nil)
	_, err := resolver.Resolve(ctx, "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDirectoryEmpty)
	require.Equal(t, 1, fetcher.Calls())
}

func TestRetryPolicyWaitHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Minute}
	start := time.Now()
	err := policy.Wait(ctx)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestDirectorySetBounds(t *testing.T) {
	t.Parallel()

	set := DirectorySet{42: {}, 7: {}, 1300: {}}
	lo, hi := set.Bounds()
	require.Equal(t, ID(7), lo)
	require.Equal(t, ID(1300), hi)
}
