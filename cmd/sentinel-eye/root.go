package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/errcode"
	"github.com/seven-shadow/sentinel-eye/provider"
	"github.com/seven-shadow/sentinel-eye/report"
)

// rootFlags carries the flags shared by every report subcommand.
type rootFlags struct {
	repo         string
	providerName string
	limit        int
	format       string
	configPath   string
	all          bool
	logLevel     string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Pull request triage for maintainers",
		Long: `Sentinel-eye turns the open pull requests and notifications of a
repository into deterministic triage reports: priority scores, pattern
clusters, an inbox, and a morning digest. The serve command keeps a
dashboard of the same reports refreshed in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flags.logLevel)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.repo, "repo", "", "Repository as owner/repo")
	pf.StringVar(&flags.providerName, "provider", "github", "Hosting platform (github, gitlab, bitbucket)")
	pf.IntVar(&flags.limit, "limit", 20, "Maximum items per report")
	pf.StringVar(&flags.format, "format", "md", "Output format (md, json, xml)")
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (JSON)")
	pf.BoolVar(&flags.all, "all", false, "Include read notifications / resolved comments")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newDigestCmd(flags),
		newInboxCmd(flags),
		newScoreCmd(flags),
		newPatternsCmd(flags),
		newCommentsCmd(flags),
		newFailuresCmd(flags),
		newLintCmd(flags),
		newServeCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func setupLogging(logLevel string) {
	level := slog.LevelWarn
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// triageContext is everything a report subcommand needs resolved up
// front: the provider, auth, repo, config, and the report meta block.
type triageContext struct {
	provider provider.Provider
	auth     provider.Auth
	repo     provider.RepoRef
	resolved *config.Resolved
	format   report.Format
	meta     report.Meta
}

// resolveContext validates the shared flags and resolves auth and config
// before any network I/O.
func resolveContext(flags *rootFlags) (*triageContext, error) {
	format, err := report.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}

	repo, err := parseRepo(flags.repo)
	if err != nil {
		return nil, err
	}

	p, err := provider.Get(flags.providerName)
	if err != nil {
		return nil, err
	}

	resolved, err := config.Resolve(flags.configPath)
	if err != nil {
		return nil, err
	}

	auth, err := provider.ResolveAuth(p)
	if err != nil {
		return nil, err
	}

	return &triageContext{
		provider: p,
		auth:     auth,
		repo:     repo,
		resolved: resolved,
		format:   format,
		meta: report.Meta{
			Repo:        repo.String(),
			Provider:    p.Name(),
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			ConfigPath:  resolved.Path,
		},
	}, nil
}

func parseRepo(s string) (provider.RepoRef, error) {
	if s == "" {
		return provider.RepoRef{}, errcode.New(errcode.ArgRequired, "--repo is required").
			WithRemediation("pass --repo owner/repo")
	}
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return provider.RepoRef{}, errcode.New(errcode.RepoResolveFailed, "%q is not an owner/repo reference", s)
	}
	return provider.RepoRef{Owner: owner, Repo: name}, nil
}

func printReport(cmd *cobra.Command, format report.Format, r report.Renderable) error {
	out, err := report.Render(format, r)
	if err != nil {
		return err
	}
	cmd.OutOrStdout().Write([]byte(out))
	return nil
}
