package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cexll/issuebot/internal/changeset"
	"github.com/cexll/issuebot/internal/concurrency"
	"github.com/cexll/issuebot/internal/config"
	"github.com/cexll/issuebot/internal/dispatcher"
	"github.com/cexll/issuebot/internal/git"
	"github.com/cexll/issuebot/internal/github"
	"github.com/cexll/issuebot/internal/notify"
	"github.com/cexll/issuebot/internal/orchestrator"
	"github.com/cexll/issuebot/internal/repostate"
	"github.com/cexll/issuebot/internal/runstore"
	"github.com/cexll/issuebot/internal/worktree"
)

const fallbackBranch = "main"

// pipeline is the fully wired orchestrator plus the run bookkeeping around it.
type pipeline struct {
	orch       *orchestrator.Orchestrator
	store      *runstore.Store
	dispatcher *dispatcher.Dispatcher
}

type branchLookup interface {
	DefaultBranch(ctx context.Context) (string, error)
}

// resolveDefaultBranch asks the tracker, falling back to main.
func resolveDefaultBranch(ctx context.Context, configured string, lookup branchLookup) string {
	if configured != "" {
		return configured
	}
	name, err := lookup.DefaultBranch(ctx)
	if err != nil || name == "" {
		log.Printf("[Main] Warning: could not resolve default branch, using %q: %v", fallbackBranch, err)
		return fallbackBranch
	}
	return name
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	owner, name, err := github.ParseRepo(cfg.Repo)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(cfg.TokenSource(), cfg.HTTPTimeout())
	issues := github.NewIssueSource(client, owner, name)
	base := resolveDefaultBranch(ctx, cfg.DefaultBranch, issues)

	completer, err := newProvider(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	repo := git.NewRepository(cfg.RepoPath, git.WithRemote(cfg.GitRemote), git.WithTimeout(cfg.GitTimeout()))
	// Fresh CI checkouts often have no committer identity, which makes every commit fail.
	if err := repo.ConfigureIdentity(ctx, cfg.GitUserName, cfg.GitUserEmail); err != nil {
		return nil, err
	}

	log.Printf("[Main] Repository: %s (default branch %s)", cfg.Repo, base)
	log.Printf("[Main] Checkout: %s, remote %s", cfg.RepoPath, cfg.GitRemote)
	log.Printf("[Main] Provider: %s", completer.Name())

	orch := orchestrator.New(orchestrator.Deps{
		Issues: issues,
		Generator: changeset.NewGenerator(completer,
			changeset.WithPathTemplate(cfg.TargetPathTemplate),
			changeset.WithPlaceholderOnEmpty(cfg.PlaceholderOnEmpty),
		),
		Writer:    worktree.NewWriter(cfg.RepoPath, repo),
		Repo:      repostate.NewController(repo, base),
		Publisher: github.NewPublisher(client, owner, name, base),
		Notifier:  notify.New(cfg.SlackWebhookURL, cfg.NotifyTimeout()),
	})

	store := runstore.NewStore(24 * time.Hour)
	return &pipeline{
		orch:  orch,
		store: store,
		dispatcher: dispatcher.New(orch, store, concurrency.NewManager(), dispatcher.Config{
			Key: concurrency.CheckoutKey(cfg.Repo, cfg.RepoPath),
		}),
	}, nil
}
