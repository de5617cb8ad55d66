package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-devicecheck/internal/types"
	"github.com/oszuidwest/zwfm-devicecheck/internal/util"
)

const (
	githubAPI           = "https://api.github.com"
	releaseInterval     = 24 * time.Hour
	releaseFirstDelay   = 30 * time.Second
	releaseTimeout      = 30 * time.Second
	releaseAttempts     = 3
	releaseRetryDelay   = time.Minute
	releaseRetryMaxWait = 10 * time.Minute
)

// errRetryable marks a release lookup worth repeating within the same cycle.
var errRetryable = errors.New("release lookup failed")

// ReleaseChecker looks up the latest published release of the repository
// named in system.update_repo so the page can offer an update. An empty
// repository disables it. It is safe for concurrent use.
type ReleaseChecker struct {
	repo       string
	baseURL    string
	client     *http.Client
	firstDelay time.Duration
	retryDelay time.Duration

	mu     sync.RWMutex
	latest string
	etag   string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReleaseChecker returns a checker for repo ("owner/name").
func NewReleaseChecker(repo string) *ReleaseChecker {
	return &ReleaseChecker{
		repo:       repo,
		baseURL:    githubAPI,
		client:     &http.Client{Timeout: releaseTimeout},
		firstDelay: releaseFirstDelay,
		retryDelay: releaseRetryDelay,
	}
}

// Enabled reports whether a release source is configured.
func (rc *ReleaseChecker) Enabled() bool {
	return rc.repo != ""
}

// Start begins polling in the background until ctx ends or Stop is called.
// It does nothing when the checker is disabled.
func (rc *ReleaseChecker) Start(ctx context.Context) {
	if !rc.Enabled() {
		slog.Info("release check disabled")
		return
	}
	ctx, rc.cancel = context.WithCancel(ctx)
	rc.done = make(chan struct{})
	go rc.run(ctx)
}

// Stop ends polling and waits for the loop to exit.
func (rc *ReleaseChecker) Stop() {
	if rc.cancel == nil {
		return
	}
	rc.cancel()
	<-rc.done
}

func (rc *ReleaseChecker) run(ctx context.Context) {
	defer close(rc.done)

	wait := rc.firstDelay
	for {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		rc.checkWithRetry(ctx)
		wait = releaseInterval
	}
}

// checkWithRetry repeats retryable failures with backoff, up to
// releaseAttempts per cycle.
func (rc *ReleaseChecker) checkWithRetry(ctx context.Context) {
	backoff := util.NewBackoff(rc.retryDelay, releaseRetryMaxWait)
	for attempt := 1; ; attempt++ {
		err := rc.check(ctx)
		if err == nil {
			return
		}
		if !errors.Is(err, errRetryable) || attempt == releaseAttempts {
			slog.Warn("release check failed", "repo", rc.repo, "attempt", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff.Next()):
		case <-ctx.Done():
			return
		}
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check performs one lookup. A repository without releases is not an error.
func (rc *ReleaseChecker) check(ctx context.Context) error {
	url := rc.baseURL + "/repos/" + rc.repo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return util.WrapError("build release request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "zwfm-devicecheck/"+Version)

	rc.mu.RLock()
	if rc.etag != "" {
		req.Header.Set("If-None-Match", rc.etag)
	}
	rc.mu.RUnlock()

	resp, err := rc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", errRetryable, resp.Status)
	default:
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return util.WrapError("decode release", err)
	}
	if release.Draft || release.Prerelease || release.TagName == "" {
		return nil
	}

	rc.mu.Lock()
	rc.latest = normalizeVersion(release.TagName)
	rc.etag = resp.Header.Get("ETag")
	rc.mu.Unlock()
	slog.Debug("release checked", "repo", rc.repo, "latest", release.TagName)
	return nil
}

// Info returns build and update information for the page.
func (rc *ReleaseChecker) Info() types.VersionInfo {
	rc.mu.RLock()
	latest := rc.latest
	rc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if latest != "" && semver.IsValid(canonicalVersion(current)) {
		info.UpdateAvail = isNewerVersion(latest, current)
	}
	return info
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func canonicalVersion(v string) string {
	return "v" + normalizeVersion(v)
}

// isNewerVersion reports whether latest is a higher semver than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare(canonicalVersion(latest), canonicalVersion(current)) > 0
}
