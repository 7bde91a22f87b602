package spacetraveling

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetraveling/content"
	"github.com/eringen/spacetraveling/pagination"
)

// exportSlug is what a UID must look like to become a directory name.
var exportSlug = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

const (
	exportWorkers  = 4
	maxExportPages = 1000
)

// ExportStats summarises a static export.
type ExportStats struct {
	ListingPages int
	Posts        int
	Skipped      int
}

// Export writes the whole site as static files under dir: the listing, the
// chain of load-more fragments, every post page, the feed, the sitemap,
// robots.txt and the public assets.
func (a *App) Export(ctx context.Context, dir string) (ExportStats, error) {
	var stats ExportStats
	if err := a.Setup(); err != nil {
		return stats, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, err
	}

	n, err := a.exportListing(ctx, dir)
	if err != nil {
		return stats, err
	}
	stats.ListingPages = n

	posts, err := a.loadPaths(ctx)
	if err != nil {
		return stats, err
	}
	written, skipped, err := a.exportPosts(ctx, dir, posts)
	if err != nil {
		return stats, err
	}
	stats.Posts, stats.Skipped = written, skipped

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"feed.xml", func(w io.Writer) error { return writeRSS(w, a.Config, posts) }},
		{"sitemap.xml", func(w io.Writer) error { return writeSitemap(w, a.Config, posts) }},
		{"robots.txt", func(w io.Writer) error { return writeRobots(w, a.Config) }},
	}
	for _, f := range files {
		if err := writeExportFile(filepath.Join(dir, f.name), f.write); err != nil {
			return stats, err
		}
	}
	if err := RenderFile(ctx, filepath.Join(dir, "404.html"), a.Views.NotFound(a.site)); err != nil {
		return stats, err
	}
	if err := copyPublic(filepath.Join(dir, "public")); err != nil {
		return stats, err
	}
	return stats, nil
}

// exportListing writes index.html and one fragment per further page,
// walking the cursor chain with a Tracker. Each fragment's button targets
// the next fragment.
func (a *App) exportListing(ctx context.Context, dir string) (int, error) {
	first, err := a.loadHome(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing: %w", err)
	}
	fragmentHref := func(n int) string { return "/posts/more/" + strconv.Itoa(n) + "/" }

	next := ""
	if first.Meta.NextPage != "" {
		next = fragmentHref(2)
	}
	if err := RenderFile(ctx, filepath.Join(dir, "index.html"), a.Views.Home(a.site, first.Posts, next)); err != nil {
		return 0, err
	}

	tracker := pagination.NewTracker(a.Client, first, pagination.WithTimeout(a.Config.FetchTimeout))
	pages := 1
	for n := 2; tracker.HasMore() && n <= maxExportPages; n++ {
		posts, err := tracker.LoadMore(ctx)
		if err != nil {
			return pages, fmt.Errorf("listing page %d: %w", n, err)
		}
		next := ""
		if tracker.HasMore() {
			next = fragmentHref(n + 1)
		}
		path := filepath.Join(dir, "posts", "more", strconv.Itoa(n), "index.html")
		if err := RenderFile(ctx, path, a.Views.MorePosts(a.site, posts, next)); err != nil {
			return pages, err
		}
		pages++
	}
	return pages, nil
}

func (a *App) exportPosts(ctx context.Context, dir string, posts []content.Post) (written, skipped int, err error) {
	results := make([]bool, len(posts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(exportWorkers)
	for i, p := range posts {
		if !exportSlug.MatchString(p.UID) {
			slog.Warn("Skipping post with unsafe uid", "slug", p.UID)
			continue
		}
		g.Go(func() error {
			post, err := a.loadPost(ctx, p.UID)
			if err != nil {
				if isNotFound(err) {
					slog.Warn("Post disappeared during export", "slug", p.UID)
					return nil
				}
				return fmt.Errorf("post %s: %w", p.UID, err)
			}
			path := filepath.Join(dir, "post", p.UID, "index.html")
			if err := RenderFile(ctx, path, a.Views.Post(a.site, post, post.BannerURL)); err != nil {
				return err
			}
			results[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	for _, ok := range results {
		if ok {
			written++
		} else {
			skipped++
		}
	}
	return written, skipped, nil
}

func writeExportFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func copyPublic(dst string) error {
	src := PublicFS()
	return fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dst, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
