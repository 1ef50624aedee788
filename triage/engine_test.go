package triage

import (
	"context"
	"testing"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memProvider serves canned per-PR data for engine tests.
type memProvider struct {
	provider.Provider

	summaries map[int]*provider.PullRequestSummary
	comments  map[int][]provider.UnresolvedComment
	runs      map[int][]provider.FailureRun
	files     map[int][]provider.ChangedFile
	failOn    int
}

func (m *memProvider) Name() string { return "mem" }

func (m *memProvider) GetPullRequestSummary(_ context.Context, repo provider.RepoRef, number int, _ provider.Auth) (*provider.PullRequestSummary, error) {
	if number == m.failOn && m.failOn != 0 {
		return nil, errcode.New(errcode.APIError, "provider request failed (status=500)")
	}
	s, ok := m.summaries[number]
	if !ok {
		return nil, errcode.New(errcode.PRResolveFailed, "no pull request #%d", number)
	}
	copied := *s
	copied.Repo = repo
	return &copied, nil
}

func (m *memProvider) ListUnresolvedComments(_ context.Context, _ provider.RepoRef, number int, _ provider.Auth) ([]provider.UnresolvedComment, error) {
	return m.comments[number], nil
}

func (m *memProvider) ListFailureRuns(_ context.Context, _ provider.RepoRef, opts provider.FailureRunOptions, _ provider.Auth) ([]provider.FailureRun, error) {
	return m.runs[opts.PRNumber], nil
}

func (m *memProvider) ListPullRequestFiles(_ context.Context, _ provider.RepoRef, number, _ int, _ provider.Auth) ([]provider.ChangedFile, error) {
	return m.files[number], nil
}

func newMemProvider() *memProvider {
	return &memProvider{
		summaries: map[int]*provider.PullRequestSummary{},
		comments:  map[int][]provider.UnresolvedComment{},
		runs:      map[int][]provider.FailureRun{},
		files:     map[int][]provider.ChangedFile{},
	}
}

func testRepo() provider.RepoRef {
	return provider.RepoRef{Owner: "acme", Repo: "widget"}
}

func TestRunEmptyInput(t *testing.T) {
	engine := NewEngine(newMemProvider(), provider.Auth{}, config.Default())

	result, err := engine.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Empty(t, result.Clusters)
}

func TestRunSinglePRScoring(t *testing.T) {
	mem := newMemProvider()
	mem.summaries[12] = &provider.PullRequestSummary{Number: 12, Title: "fix flaky pipeline", State: "open"}
	mem.runs[12] = []provider.FailureRun{
		{RunID: 1, WorkflowName: "CI", Jobs: []provider.Job{{Name: "test"}}},
		{RunID: 2, WorkflowName: "CI", Jobs: []provider.Job{{Name: "test"}}},
		{RunID: 3, WorkflowName: "CI", Jobs: []provider.Job{{Name: "test"}}},
	}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	result, err := engine.Run(context.Background(), []WorkItem{{Repo: testRepo(), Number: 12}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	pr := result.Items[0]
	assert.Equal(t, 3, pr.FailingRuns)
	// 3 failing runs against a saturation of 5 at weight 35: 3/5*35 = 21.
	assert.InDelta(t, 21.0, pr.Breakdown.FailingRuns, 1e-9)
	assert.InDelta(t, 21.0, pr.RiskPoints, 1e-9)
	assert.Equal(t, 21, pr.PriorityScore)
	assert.Equal(t, 79, pr.TrustScore)
}

func TestRunValuesBeyondSaturationClamp(t *testing.T) {
	mem := newMemProvider()
	mem.summaries[1] = &provider.PullRequestSummary{
		Number: 1, Title: "mega refactor", ChangedFiles: 500, Additions: 90000, Deletions: 90000,
	}
	for i := 0; i < 9; i++ {
		mem.runs[1] = append(mem.runs[1], provider.FailureRun{RunID: int64(i)})
	}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	result, err := engine.Run(context.Background(), []WorkItem{{Repo: testRepo(), Number: 1}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	pr := result.Items[0]
	// Every signal is at or past its saturation point, so each contributes
	// its full weight. Peers stay zero with a single PR.
	assert.InDelta(t, 35.0, pr.Breakdown.FailingRuns, 1e-9)
	assert.InDelta(t, 15.0, pr.Breakdown.ChangedFiles, 1e-9)
	assert.InDelta(t, 15.0, pr.Breakdown.LinesChanged, 1e-9)
	assert.InDelta(t, 0.0, pr.Breakdown.DuplicatePeers, 1e-9)
	assert.Equal(t, 65, pr.PriorityScore)
	assert.Equal(t, 35, pr.TrustScore)
}

func TestRunPathAreaCluster(t *testing.T) {
	mem := newMemProvider()
	for _, n := range []int{1, 2, 3} {
		mem.summaries[n] = &provider.PullRequestSummary{Number: n, Title: "touch core"}
		mem.files[n] = []provider.ChangedFile{{Path: "src/core/thing.go"}}
	}
	mem.summaries[4] = &provider.PullRequestSummary{Number: 4, Title: "docs only"}
	mem.files[4] = []provider.ChangedFile{{Path: "docs/guide.md"}}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	result, err := engine.Run(context.Background(), []WorkItem{
		{Repo: testRepo(), Number: 1},
		{Repo: testRepo(), Number: 2},
		{Repo: testRepo(), Number: 3},
		{Repo: testRepo(), Number: 4},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 4)

	var core *PatternCluster
	for i := range result.Clusters {
		if result.Clusters[i].Type == ClusterPathArea && result.Clusters[i].Key == "src/core" {
			core = &result.Clusters[i]
		}
	}
	require.NotNil(t, core, "expected a src/core path-area cluster")
	assert.Equal(t, 3, core.Size)
	for _, ref := range core.PullRequests {
		assert.NotEqual(t, 4, ref.Number)
	}

	for _, pr := range result.Items {
		if pr.Number == 4 {
			assert.Equal(t, 0, pr.DuplicatePeers)
		} else {
			assert.Equal(t, 2, pr.DuplicatePeers)
		}
	}
}

func TestRunClusterRefsMatchScoredItems(t *testing.T) {
	mem := newMemProvider()
	// Two clustered PRs with very different priority, plus an outsider that
	// outranks one of them. Cluster refs must still point at the right PRs.
	mem.summaries[1] = &provider.PullRequestSummary{Number: 1, Title: "alpha"}
	mem.files[1] = []provider.ChangedFile{{Path: "pkg/auth/a.go"}}
	mem.runs[1] = []provider.FailureRun{{RunID: 1}, {RunID: 2}, {RunID: 3}}
	mem.summaries[2] = &provider.PullRequestSummary{Number: 2, Title: "beta"}
	mem.files[2] = []provider.ChangedFile{{Path: "pkg/auth/b.go"}}
	mem.summaries[3] = &provider.PullRequestSummary{Number: 3, Title: "gamma"}
	mem.comments[3] = []provider.UnresolvedComment{{Body: "blocker"}, {Body: "also"}}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	result, err := engine.Run(context.Background(), []WorkItem{
		{Repo: testRepo(), Number: 1},
		{Repo: testRepo(), Number: 2},
		{Repo: testRepo(), Number: 3},
	})
	require.NoError(t, err)
	require.Len(t, result.Clusters, 1)

	cluster := result.Clusters[0]
	assert.Equal(t, ClusterPathArea, cluster.Type)
	assert.Equal(t, "pkg/auth", cluster.Key)
	require.Len(t, cluster.PullRequests, 2)
	assert.Equal(t, 1, cluster.PullRequests[0].Number)
	assert.Equal(t, "alpha", cluster.PullRequests[0].Title)
	assert.Equal(t, 2, cluster.PullRequests[1].Number)
	assert.Equal(t, "beta", cluster.PullRequests[1].Title)

	byNumber := map[int]ScoredPullRequest{}
	for _, pr := range result.Items {
		byNumber[pr.Number] = pr
	}
	assert.Equal(t, byNumber[1].PriorityScore, cluster.PullRequests[0].PriorityScore)
	assert.Equal(t, byNumber[2].PriorityScore, cluster.PullRequests[1].PriorityScore)
}

func TestRunCanonicalOrdering(t *testing.T) {
	mem := newMemProvider()
	// Same priority, tie broken by unresolved comments and then number.
	mem.summaries[10] = &provider.PullRequestSummary{Number: 10, Title: "ten"}
	mem.summaries[20] = &provider.PullRequestSummary{Number: 20, Title: "twenty"}
	mem.comments[20] = []provider.UnresolvedComment{{Body: "note", Resolved: true}}
	mem.summaries[30] = &provider.PullRequestSummary{Number: 30, Title: "thirty"}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	result, err := engine.Run(context.Background(), []WorkItem{
		{Repo: testRepo(), Number: 30},
		{Repo: testRepo(), Number: 20},
		{Repo: testRepo(), Number: 10},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	// Resolved comments never count.
	assert.Equal(t, 0, result.Items[0].UnresolvedComments)
	assert.Equal(t, []int{10, 20, 30}, []int{
		result.Items[0].Number, result.Items[1].Number, result.Items[2].Number,
	})
}

func TestRunDeterministicAcrossInputOrder(t *testing.T) {
	mem := newMemProvider()
	for n := 1; n <= 6; n++ {
		mem.summaries[n] = &provider.PullRequestSummary{Number: n, Title: "fix parser crash"}
		mem.files[n] = []provider.ChangedFile{{Path: "internal/parse/lex.go"}}
	}

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	forward := []WorkItem{}
	reverse := []WorkItem{}
	for n := 1; n <= 6; n++ {
		forward = append(forward, WorkItem{Repo: testRepo(), Number: n})
		reverse = append([]WorkItem{{Repo: testRepo(), Number: n}}, reverse...)
	}

	a, err := engine.Run(context.Background(), forward)
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), reverse)
	require.NoError(t, err)

	assert.Equal(t, a.Items, b.Items)
	assert.Equal(t, a.Clusters, b.Clusters)
}

func TestRunAbortsOnProviderError(t *testing.T) {
	mem := newMemProvider()
	mem.summaries[1] = &provider.PullRequestSummary{Number: 1, Title: "ok"}
	mem.failOn = 2

	engine := NewEngine(mem, provider.Auth{}, config.Default())
	_, err := engine.Run(context.Background(), []WorkItem{
		{Repo: testRepo(), Number: 1},
		{Repo: testRepo(), Number: 2},
	})
	require.Error(t, err)
	assert.Equal(t, errcode.APIError, errcode.CodeOf(err))
	assert.Contains(t, err.Error(), "acme/widget#2")
}

func TestRunUsesPrefetchedSummary(t *testing.T) {
	mem := newMemProvider()
	// No summary registered for #5; the engine must use the one on the item.
	engine := NewEngine(mem, provider.Auth{}, config.Default())

	result, err := engine.Run(context.Background(), []WorkItem{{
		Repo:    testRepo(),
		Number:  5,
		Summary: &provider.PullRequestSummary{Repo: testRepo(), Number: 5, Title: "prefetched"},
	}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "prefetched", result.Items[0].Title)
}
