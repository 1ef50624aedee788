package main

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/dashboard"
	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/seven-shadow/sentinel-eye/report"
	"github.com/seven-shadow/sentinel-eye/triage"
)

// runOpenPullRequests feeds the open PRs through the triage engine. This
// is the pipeline behind score and patterns.
func runOpenPullRequests(ctx context.Context, tc *triageContext, limit int) (*triage.ScoreResult, error) {
	summaries, err := tc.provider.ListOpenPullRequests(ctx, tc.repo, provider.PullRequestOptions{
		MaxPullRequests: min(limit, tc.resolved.Config.Limits.MaxPullRequests),
	}, tc.auth)
	if err != nil {
		return nil, err
	}
	engine := triage.NewEngine(tc.provider, tc.auth, tc.resolved.Config)
	return engine.Run(ctx, triage.WorkItemsFromPullRequests(tc.repo, summaries))
}

// runNotifications feeds the PR notifications through the triage engine.
// This is the pipeline behind inbox and digest.
func runNotifications(ctx context.Context, tc *triageContext, limit int, includeRead bool) (*triage.ScoreResult, error) {
	cfg := tc.resolved.Config
	notifications, err := tc.provider.ListNotifications(ctx, tc.repo, provider.NotificationOptions{
		MaxItems:    dashboard.NotificationFetchMax(limit, cfg.Limits.MaxNotifications),
		IncludeRead: includeRead || cfg.Inbox.IncludeReadByDefault,
	}, tc.auth)
	if err != nil {
		if cfg.Inbox.RequireNotificationsScope {
			return nil, err
		}
		notifications = nil
	}
	engine := triage.NewEngine(tc.provider, tc.auth, cfg)
	return engine.Run(ctx, triage.WorkItemsFromNotifications(tc.repo, notifications))
}

// triageOnePullRequest runs the engine for a single PR so the comments
// and failures reports carry scored context.
func triageOnePullRequest(ctx context.Context, tc *triageContext, number int) (*triage.ScoredPullRequest, error) {
	engine := triage.NewEngine(tc.provider, tc.auth, tc.resolved.Config)
	result, err := engine.Run(ctx, []triage.WorkItem{{Repo: tc.repo, Number: number}})
	if err != nil {
		return nil, err
	}
	return &result.Items[0], nil
}

// resolvePRNumber takes the --pr flag, falling back to the open PR of the
// current git branch.
func resolvePRNumber(ctx context.Context, tc *triageContext, pr int) (int, error) {
	if pr > 0 {
		return pr, nil
	}
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return 0, errcode.New(errcode.Git, "could not determine the current branch").
			WithRemediation("pass --pr N or run inside a git checkout")
	}
	branch := strings.TrimSpace(string(out))
	number, ok, err := tc.provider.ResolveOpenPullRequestForBranch(ctx, tc.repo, branch, tc.auth)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errcode.New(errcode.PRResolveFailed, "no open pull request for branch %q", branch)
	}
	return number, nil
}

func newScoreCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Score the open pull requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			result, err := runOpenPullRequests(cmd.Context(), tc, flags.limit)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format, report.NewScore(tc.meta, result, flags.limit))
		},
	}
}

func newPatternsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Cluster open pull requests by repeated patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			result, err := runOpenPullRequests(cmd.Context(), tc, flags.limit)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format, report.NewPatterns(tc.meta, result))
		},
	}
}

func newInboxCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Triage the pull requests your notifications point at",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			result, err := runNotifications(cmd.Context(), tc, flags.limit, flags.all)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format, report.NewInbox(tc.meta, result, flags.limit))
		},
	}
}

func newDigestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Summarize the inbox: top priorities, clusters, counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			result, err := runNotifications(cmd.Context(), tc, flags.limit, flags.all)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format,
				report.NewDigest(tc.meta, result, tc.resolved.Config.Limits.MaxDigestItems))
		},
	}
}

func newCommentsCmd(flags *rootFlags) *cobra.Command {
	var pr int
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "List the unresolved review comments of one pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			number, err := resolvePRNumber(cmd.Context(), tc, pr)
			if err != nil {
				return err
			}
			scored, err := triageOnePullRequest(cmd.Context(), tc, number)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format, report.NewComments(tc.meta, scored))
		},
	}
	cmd.Flags().IntVar(&pr, "pr", 0, "Pull request number (default: the current branch's PR)")
	return cmd
}

func newFailuresCmd(flags *rootFlags) *cobra.Command {
	var pr int
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List the failing CI runs of one pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := resolveContext(flags)
			if err != nil {
				return err
			}
			number, err := resolvePRNumber(cmd.Context(), tc, pr)
			if err != nil {
				return err
			}
			scored, err := triageOnePullRequest(cmd.Context(), tc, number)
			if err != nil {
				return err
			}
			return printReport(cmd, tc.format, report.NewFailures(tc.meta, scored))
		},
	}
	cmd.Flags().IntVar(&pr, "pr", 0, "Pull request number (default: the current branch's PR)")
	return cmd
}

func newLintCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.Resolve(flags.configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (source: %s)\n", resolved.Path, resolved.Source)
			return nil
		},
	}
}
