// Command listening-stats serves statistics over a Spotify streaming
// history export and maintains the artist genre cache.
//
// Usage:
//
//	listening-stats [-config file] [-env file] [serve|status|enrich|groups] [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/justestif/go-spotify-listening-stats/internal/auth"
	"github.com/justestif/go-spotify-listening-stats/internal/clustering"
	"github.com/justestif/go-spotify-listening-stats/internal/config"
	"github.com/justestif/go-spotify-listening-stats/internal/dataset"
	"github.com/justestif/go-spotify-listening-stats/internal/genres"
	"github.com/justestif/go-spotify-listening-stats/internal/spotify"
	"github.com/justestif/go-spotify-listening-stats/internal/stats"
	"github.com/justestif/go-spotify-listening-stats/internal/web"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	data   *dataset.Dataset
	genres *genres.Service
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("listening-stats", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a config file (default: ./listening-stats.yaml if present)")
	envFile := fs.String("env", ".env", "path to a dotenv file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logrus.StandardLogger()
	if err := cfg.ConfigureLogger(logger); err != nil {
		return err
	}

	a := newApp(cfg, logger)

	cmd, rest := "serve", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "serve":
		return a.serve()
	case "status":
		return a.status(out)
	case "enrich":
		return a.enrich(rest, out)
	case "groups":
		return a.groups(rest, out)
	default:
		return fmt.Errorf("unknown command %q (want serve, status, enrich or groups)", cmd)
	}
}

func newApp(cfg *config.Config, logger *logrus.Logger) *app {
	data := dataset.New(cfg.Dataset(),
		dataset.WithTTL(cfg.Cache.DatasetTTL),
		dataset.WithLogger(logger),
	)

	tokens := auth.New(cfg.Credentials(), auth.NewTokenCache(cfg.Cache.Dir), auth.WithLogger(logger))
	client := spotify.NewClient(spotify.WithLogger(logger))
	svc := genres.NewService(tokens, client, genres.NewCache(cfg.Cache.Dir),
		genres.WithTrackLimit(cfg.Spotify.TrackLimit),
		genres.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, data: data, genres: svc}
}

func (a *app) serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Data.Watch {
		if err := a.data.StartWatcher(ctx); err != nil {
			a.logger.WithError(err).Warn("Export watcher disabled")
		}
	}

	server := web.NewServer(web.ServerConfig{
		Addr:    a.cfg.Server.Addr,
		Dataset: a.data,
		Genres:  a.genres,
		Logger:  a.logger,
	})
	return server.Run()
}

func (a *app) status(out io.Writer) error {
	st := a.genres.Status()

	fmt.Fprintln(out, "Spotify API status")
	fmt.Fprintf(out, "  Credentials configured: %v\n", st.APIAvailable)
	fmt.Fprintf(out, "  Token state:            %s\n", st.TokenState)
	fmt.Fprintf(out, "  Genre cache present:    %v\n", st.CacheExists)
	fmt.Fprintf(out, "  Cached artists:         %d\n", st.CachedArtists)

	if !st.APIAvailable {
		fmt.Fprintf(out, "\nSet %s and %s to enable genre enrichment.\n", auth.EnvClientID, auth.EnvClientSecret)
	}
	return nil
}

func (a *app) enrich(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	force := fs.Bool("force", false, "refetch even when the cache is populated")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := a.data.Events(ctx)
	if err != nil {
		return fmt.Errorf("loading streaming history: %w", err)
	}

	var names []string
	for _, row := range stats.Top(events, stats.TopQuery{Dimension: stats.DimensionArtist}) {
		names = append(names, row.Artist)
	}

	cache, report := a.genres.Enrich(ctx, names, events, *force)

	fmt.Fprintf(out, "Run %s: %s\n", report.RunID, report.Source)
	if report.Source == genres.SourceNetwork {
		fmt.Fprintf(out, "  Tracks looked up:  %d\n", report.Tracks)
		fmt.Fprintf(out, "  Artists resolved:  %d\n", report.Artists)
		fmt.Fprintf(out, "  Artists added:     %d\n", report.Added)
		fmt.Fprintf(out, "  Failed batches:    %d\n", report.FailedBatches)
		if report.Partial {
			fmt.Fprintln(out, "  Partial result:    some lookups failed, rerun with -force to retry")
		}
		fmt.Fprintf(out, "  Cache written:     %v\n", report.Persisted)
	}
	fmt.Fprintf(out, "  Cached artists:    %d\n", len(cache))
	fmt.Fprintf(out, "  Without genres:    %d\n", len(report.Missing))
	return nil
}

func (a *app) groups(args []string, out io.Writer) error {
	cfg := clustering.DefaultGroupConfig()

	fs := flag.NewFlagSet("groups", flag.ContinueOnError)
	fs.IntVar(&cfg.NumClusters, "clusters", cfg.NumClusters, "number of clusters")
	fs.IntVar(&cfg.MinGroupSize, "min-size", cfg.MinGroupSize, "minimum artists per group")
	limit := fs.Int("artists", 200, "number of top artists to group (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := a.data.Events(context.Background())
	if err != nil {
		return fmt.Errorf("loading streaming history: %w", err)
	}

	artists := genres.GroupInput(events, a.genres.Cached(), *limit)
	grouped, ungrouped, err := clustering.GroupArtists(artists, cfg)
	if err != nil {
		return fmt.Errorf("grouping artists: %w", err)
	}

	fmt.Fprint(out, clustering.FormatGroupSummary(grouped, ungrouped))
	return nil
}
