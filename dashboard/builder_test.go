package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is an in-memory Provider whose failures and latencies are
// scriptable per test.
type fakeProvider struct {
	provider.Provider

	mu            sync.Mutex
	envVar        string
	pulls         []provider.PullRequestSummary
	notifications []provider.Notification
	comments      map[int][]provider.UnresolvedComment
	runs          map[int][]provider.FailureRun
	files         map[int][]provider.ChangedFile
	pullsErr      error
	notifErr      error

	pullCalls atomic.Int64
	block     chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		envVar:   "FAKE_TOKEN",
		comments: map[int][]provider.UnresolvedComment{},
		runs:     map[int][]provider.FailureRun{},
		files:    map[int][]provider.ChangedFile{},
	}
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) TokenEnvVar() string { return f.envVar }

func (f *fakeProvider) setErrors(pullsErr, notifErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pullsErr = pullsErr
	f.notifErr = notifErr
}

func (f *fakeProvider) ListOpenPullRequests(_ context.Context, repo provider.RepoRef, opts provider.PullRequestOptions, _ provider.Auth) ([]provider.PullRequestSummary, error) {
	f.pullCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullsErr != nil {
		return nil, f.pullsErr
	}
	pulls := make([]provider.PullRequestSummary, 0, len(f.pulls))
	for _, p := range f.pulls {
		p.Repo = repo
		pulls = append(pulls, p)
		if opts.MaxPullRequests > 0 && len(pulls) >= opts.MaxPullRequests {
			break
		}
	}
	return pulls, nil
}

func (f *fakeProvider) ListNotifications(_ context.Context, _ provider.RepoRef, opts provider.NotificationOptions, _ provider.Auth) ([]provider.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifErr != nil {
		return nil, f.notifErr
	}
	if opts.MaxItems > 0 && len(f.notifications) > opts.MaxItems {
		return f.notifications[:opts.MaxItems], nil
	}
	return f.notifications, nil
}

func (f *fakeProvider) GetPullRequestSummary(_ context.Context, repo provider.RepoRef, number int, _ provider.Auth) (*provider.PullRequestSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pulls {
		if p.Number == number {
			p.Repo = repo
			return &p, nil
		}
	}
	return nil, errcode.New(errcode.PRResolveFailed, "no pull request #%d", number)
}

func (f *fakeProvider) ListUnresolvedComments(_ context.Context, _ provider.RepoRef, number int, _ provider.Auth) ([]provider.UnresolvedComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comments[number], nil
}

func (f *fakeProvider) ListFailureRuns(_ context.Context, _ provider.RepoRef, opts provider.FailureRunOptions, _ provider.Auth) ([]provider.FailureRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[opts.PRNumber], nil
}

func (f *fakeProvider) ListPullRequestFiles(_ context.Context, _ provider.RepoRef, number, _ int, _ provider.Auth) ([]provider.ChangedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[number], nil
}

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

var testTime = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestBuilder(t *testing.T, fake *fakeProvider, cfg *config.Config) *Builder {
	t.Helper()
	t.Setenv(fake.envVar, "token")
	repo := provider.RepoRef{Owner: "acme", Repo: "widget"}
	return NewBuilder(fake, repo, 20, cfg, "/tmp/sentinel-eye.json", WithClock(fixedClock(testTime)))
}

func TestBuildEmptyInputsAllSectionsOK(t *testing.T) {
	b := newTestBuilder(t, newFakeProvider(), config.Default())

	snapshot, err := b.Build(context.Background())
	require.NoError(t, err)
	require.True(t, snapshot.AllOK())

	assert.Empty(t, snapshot.Sections.Score.Data.Items)
	assert.Empty(t, snapshot.Sections.Patterns.Data.Clusters)
	assert.Empty(t, snapshot.Sections.Inbox.Data.Items)
	assert.Empty(t, snapshot.Sections.Digest.Data.TopPriorities)

	// One generatedAt, shared by the meta and all four sections.
	want := "2026-08-26T10:00:00Z"
	assert.Equal(t, want, snapshot.Meta.GeneratedAt)
	assert.Equal(t, want, snapshot.Sections.Score.Data.GeneratedAt)
	assert.Equal(t, want, snapshot.Sections.Patterns.Data.GeneratedAt)
	assert.Equal(t, want, snapshot.Sections.Inbox.Data.GeneratedAt)
	assert.Equal(t, want, snapshot.Sections.Digest.Data.GeneratedAt)
}

func TestBuildMissingAuthFailsAllSections(t *testing.T) {
	fake := newFakeProvider()
	fake.envVar = "FAKE_TOKEN_DEFINITELY_UNSET"
	repo := provider.RepoRef{Owner: "acme", Repo: "widget"}
	b := NewBuilder(fake, repo, 20, config.Default(), "/tmp/sentinel-eye.json")

	snapshot, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, errcode.AuthMissing, errcode.CodeOf(err))

	for _, se := range []*SectionError{
		snapshot.Sections.Digest.Error,
		snapshot.Sections.Inbox.Error,
		snapshot.Sections.Score.Error,
		snapshot.Sections.Patterns.Error,
	} {
		require.NotNil(t, se)
		assert.Equal(t, errcode.AuthMissing, se.Code)
	}
	assert.NotEmpty(t, snapshot.Meta.GeneratedAt)
}

func TestBuildPipelinesFailIndependently(t *testing.T) {
	fake := newFakeProvider()
	fake.setErrors(errcode.New(errcode.APIError, "provider request failed (status=500)"), nil)
	b := newTestBuilder(t, fake, config.Default())

	snapshot, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, errcode.APIError, errcode.CodeOf(err))

	assert.False(t, snapshot.Sections.Score.OK())
	assert.False(t, snapshot.Sections.Patterns.OK())
	assert.True(t, snapshot.Sections.Inbox.OK())
	assert.True(t, snapshot.Sections.Digest.OK())
	assert.Equal(t, errcode.APIError, snapshot.PrimaryError().Code)
}

func TestBuildNotificationFailureDegradesToEmptyInbox(t *testing.T) {
	fake := newFakeProvider()
	fake.setErrors(nil, errcode.New(errcode.NotificationsScopeRequired, "token lacks notifications scope"))
	b := newTestBuilder(t, fake, config.Default())

	snapshot, err := b.Build(context.Background())
	require.NoError(t, err)
	require.True(t, snapshot.AllOK())
	assert.Empty(t, snapshot.Sections.Inbox.Data.Items)
}

func TestBuildNotificationFailureFatalWhenScopeRequired(t *testing.T) {
	fake := newFakeProvider()
	fake.setErrors(nil, errcode.New(errcode.NotificationsScopeRequired, "token lacks notifications scope"))
	cfg := config.Default()
	cfg.Inbox.RequireNotificationsScope = true
	b := newTestBuilder(t, fake, cfg)

	snapshot, err := b.Build(context.Background())
	require.Error(t, err)
	assert.False(t, snapshot.Sections.Inbox.OK())
	assert.False(t, snapshot.Sections.Digest.OK())
	assert.True(t, snapshot.Sections.Score.OK())
	assert.True(t, snapshot.Sections.Patterns.OK())
	assert.Equal(t, errcode.NotificationsScopeRequired, snapshot.PrimaryError().Code)
}

func TestBuildSectionErrorMessageTruncated(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	fake := newFakeProvider()
	fake.setErrors(errcode.New(errcode.APIError, "%s", string(long)), nil)
	b := newTestBuilder(t, fake, config.Default())

	snapshot, _ := b.Build(context.Background())
	require.NotNil(t, snapshot.Sections.Score.Error)
	assert.Len(t, snapshot.Sections.Score.Error.Message, 220)
}

func TestNotificationMaxFormula(t *testing.T) {
	tests := []struct {
		limit, maxNotifications, want int
	}{
		{10, 50, 30},
		{30, 50, 50},
		{50, 50, 50},
		{1, 50, 3},
		{0, 50, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NotificationFetchMax(tt.limit, tt.maxNotifications),
			"limit=%d max=%d", tt.limit, tt.maxNotifications)
	}
}
