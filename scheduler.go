package spacetraveling

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/eringen/spacetraveling/content"
)

// startScheduler runs the revalidation job immediately and then every
// Revalidate interval.
func (a *App) startScheduler() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(a.Config.Revalidate),
		gocron.NewTask(a.revalidateJob),
		gocron.WithName("revalidate"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("failed to create revalidation job: %w", err)
	}
	slog.Info("Starting scheduler", "interval", a.Config.Revalidate)
	s.Start()
	a.scheduler = s
	return nil
}

// triggerRevalidation runs the job now, through the scheduler when it runs
// so a webhook never overlaps a scheduled run.
func (a *App) triggerRevalidation() {
	if a.scheduler != nil {
		for _, job := range a.scheduler.Jobs() {
			if job.Name() == "revalidate" {
				if err := job.RunNow(); err != nil {
					slog.Warn("Failed to trigger revalidation", "error", err)
				}
				return
			}
		}
	}
	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		a.revalidateJob()
	}()
}

func (a *App) revalidateJob() {
	start := time.Now()
	stats, err := a.RevalidateAll(context.Background())
	if err != nil {
		slog.Error("Revalidation failed", "error", err, "duration", time.Since(start))
		return
	}
	slog.Info("Revalidation finished",
		"posts", stats.Posts,
		"failed", stats.Failed,
		"removed", stats.Removed,
		"duration", time.Since(start))
}

// RevalidateStats summarises one RevalidateAll run.
type RevalidateStats struct {
	Posts   int
	Failed  int
	Removed int
}

// RevalidateAll regenerates the listing, the post enumeration and every
// post page. Cached posts the CMS no longer lists are dropped.
func (a *App) RevalidateAll(ctx context.Context) (RevalidateStats, error) {
	var stats RevalidateStats
	if err := a.Setup(); err != nil {
		return stats, err
	}
	if _, err := refreshPage(ctx, a.Pages, homeKey, a.loadHome); err != nil {
		return stats, fmt.Errorf("regenerate listing: %w", err)
	}
	posts, err := refreshPage(ctx, a.Pages, pathsKey, a.loadPaths)
	if err != nil {
		return stats, fmt.Errorf("regenerate paths: %w", err)
	}

	live := make(map[string]bool, len(posts))
	for _, p := range posts {
		live[postKey(p.UID)] = true
		uid := p.UID
		_, err := refreshPage(ctx, a.Pages, postKey(uid), func(ctx context.Context) (content.PostDetail, error) {
			return a.loadPost(ctx, uid)
		})
		if err != nil {
			stats.Failed++
			slog.Warn("Failed to regenerate post", "slug", uid, "error", err)
			continue
		}
		stats.Posts++
	}

	for _, key := range a.Pages.Keys(postKeyPrefix) {
		if !live[key] {
			a.Pages.Invalidate(key)
			stats.Removed++
			slog.Info("Dropped post no longer in the CMS", "slug", strings.TrimPrefix(key, postKeyPrefix))
		}
	}
	return stats, nil
}
