package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/nooltools/nooltools/internal/logging"
)

// Feed providers.
const (
	ProviderGitHub = "github"
	ProviderGitea  = "gitea"
	ProviderGitLab = "gitlab"
)

// DefaultFeedTimeout bounds a single feed request.
const DefaultFeedTimeout = 8 * time.Second

// DefaultRepository is the release repository slug used when none is configured.
const DefaultRepository = "HEUdbh/nooltools"

// FeedConfig selects and configures the release feed.
type FeedConfig struct {
	Provider   string
	Repository string // owner/name slug
	BaseURL    string // enterprise or self-hosted API root
	Token      string
	Timeout    time.Duration
	Prerelease bool
}

// Feed returns the newest release from a remote feed.
type Feed interface {
	FetchLatest(ctx context.Context) (ReleaseInfo, error)
}

// FeedClient reads releases through a go-selfupdate source.
type FeedClient struct {
	source     selfupdate.Source
	repository selfupdate.Repository
	slug       string
	timeout    time.Duration
	prerelease bool
	logger     *slog.Logger
}

// NewSource builds the go-selfupdate source for cfg.Provider.
func NewSource(cfg FeedConfig) (selfupdate.Source, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGitHub:
		return selfupdate.NewGitHubSource(selfupdate.GitHubConfig{
			APIToken:          cfg.Token,
			EnterpriseBaseURL: cfg.BaseURL,
		})
	case ProviderGitea:
		return selfupdate.NewGiteaSource(selfupdate.GiteaConfig{
			BaseURL:  cfg.BaseURL,
			APIToken: cfg.Token,
		})
	case ProviderGitLab:
		return selfupdate.NewGitLabSource(selfupdate.GitLabConfig{
			BaseURL:  cfg.BaseURL,
			APIToken: cfg.Token,
		})
	default:
		return nil, fmt.Errorf("unknown feed provider %q", cfg.Provider)
	}
}

// NewFeedClient creates a client for the provider named in cfg.
func NewFeedClient(cfg FeedConfig) (*FeedClient, error) {
	source, err := NewSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s source: %w", cfg.Provider, err)
	}
	return NewFeedClientWithSource(source, cfg), nil
}

// NewFeedClientWithSource creates a client over an existing source.
func NewFeedClientWithSource(source selfupdate.Source, cfg FeedConfig) *FeedClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	slug := cfg.Repository
	if slug == "" {
		slug = DefaultRepository
	}
	return &FeedClient{
		source:     source,
		repository: selfupdate.ParseSlug(slug),
		slug:       slug,
		timeout:    timeout,
		prerelease: cfg.Prerelease,
		logger:     logging.GetLogger("update"),
	}
}

// FetchLatest lists releases and returns the newest published one.
// Drafts are skipped, and pre-releases too unless the client allows them.
// Every failure is reported as ErrCodeFeedUnavailable. There are no retries here.
func (c *FeedClient) FetchLatest(ctx context.Context) (ReleaseInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	releases, err := c.source.ListReleases(ctx, c.repository)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ReleaseInfo{}, newError(ErrCodeFeedUnavailable,
				fmt.Sprintf("release feed timed out after %s", c.timeout), err)
		}
		return ReleaseInfo{}, newError(ErrCodeFeedUnavailable, "failed to list releases", err)
	}

	var latest selfupdate.SourceRelease
	for _, rel := range releases {
		if rel == nil || rel.GetDraft() {
			continue
		}
		if rel.GetPrerelease() && !c.prerelease {
			continue
		}
		if releaseVersion(rel) == "" {
			continue
		}
		if latest == nil || rel.GetPublishedAt().After(latest.GetPublishedAt()) {
			latest = rel
		}
	}
	if latest == nil {
		return ReleaseInfo{}, newError(ErrCodeFeedUnavailable,
			fmt.Sprintf("no published releases for %s", c.slug), nil)
	}

	info := toReleaseInfo(latest)
	c.logger.Debug("Fetched latest release", "repository", c.slug, "version", info.Version, "assets", len(info.Assets))
	return info, nil
}

// releaseVersion prefers the tag and falls back to the release name.
func releaseVersion(rel selfupdate.SourceRelease) string {
	if tag := strings.TrimSpace(rel.GetTagName()); tag != "" {
		return tag
	}
	return strings.TrimSpace(rel.GetName())
}

func toReleaseInfo(rel selfupdate.SourceRelease) ReleaseInfo {
	info := ReleaseInfo{
		Version:     releaseVersion(rel),
		Name:        strings.TrimSpace(rel.GetName()),
		URL:         strings.TrimSpace(rel.GetURL()),
		PublishedAt: rel.GetPublishedAt(),
		Notes:       strings.TrimSpace(rel.GetReleaseNotes()),
		Prerelease:  rel.GetPrerelease(),
	}
	for _, a := range rel.GetAssets() {
		if a == nil {
			continue
		}
		info.Assets = append(info.Assets, Asset{
			Name:        strings.TrimSpace(a.GetName()),
			Size:        int64(a.GetSize()),
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}
	return info
}
