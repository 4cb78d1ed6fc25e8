// Command kickstream: live-sports playlist aggregator (run), or one-shot
// generate / probe passes.
//
//	run       Daemon: regenerate + stream checks on their intervals, serve the playlist. For systemd.
//	generate  Fetch schedules, build the playlist once, write it, exit
//	probe     Probe an existing playlist file, refresh its annotations and proxy routing, exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kickstream/kickstream/internal/config"
	"github.com/kickstream/kickstream/internal/history"
	"github.com/kickstream/kickstream/internal/playlist"
	"github.com/kickstream/kickstream/internal/prober"
	"github.com/kickstream/kickstream/internal/relay"
	"github.com/kickstream/kickstream/internal/schedule"
	"github.com/kickstream/kickstream/internal/scheduler"
	"github.com/kickstream/kickstream/internal/server"
)

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "kickstream").Logger()
}

func newScheduleClient(cfg *config.Config, log zerolog.Logger) *schedule.Client {
	return schedule.NewClient(schedule.ClientOptions{
		BaseURL:   cfg.APIBaseURL,
		UserAgent: cfg.UserAgent,
		Referer:   cfg.Referer,
		Origin:    cfg.Origin,
		RPS:       cfg.FetchRPS,
		Burst:     cfg.FetchBurst,
		Timeout:   cfg.FetchTimeout,
	}, log)
}

func newProber(cfg *config.Config, store *history.Store, log zerolog.Logger) *prober.Prober {
	return prober.New(prober.Options{
		Timeout:            cfg.ProbeTimeout,
		Concurrency:        cfg.ProbeConcurrency,
		Threshold:          cfg.ProxyThreshold,
		CacheTTL:           cfg.ProbeCacheTTL,
		ForceProxyDomains:  cfg.ForceProxyDomains,
		ForceDirectDomains: cfg.ForceDirectDomains,
		BackupEntries:      cfg.BackupEntries,
		UserAgent:          cfg.UserAgent,
		Referer:            cfg.Referer,
		Origin:             cfg.Origin,
	}, store, log)
}

func newRunner(cfg *config.Config, store *history.Store, log zerolog.Logger, playlistPath string) *scheduler.Runner {
	return scheduler.NewRunner(scheduler.Options{
		RegenerateInterval: cfg.RegenerateInterval,
		CheckInterval:      cfg.CheckInterval,
		Build: playlist.BuildOptions{
			PrimaryStreamBase: cfg.PrimaryStreamBase,
			BackupStreamBase:  cfg.BackupStreamBase,
			HoursLookingAhead: cfg.HoursLookingAhead,
		},
		HoursBack:    cfg.HoursBack,
		HoursAhead:   cfg.HoursAhead,
		PlaylistPath: playlistPath,
	}, newScheduleClient(cfg, log), newProber(cfg, store, log), store, log)
}

// openHistory opens the probe DB when configured. A broken DB never stops the
// aggregator; it just loses probe caching and /status health.
func openHistory(cfg *config.Config, log zerolog.Logger) *history.Store {
	if cfg.HistoryPath == "" {
		return nil
	}
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.HistoryPath).Msg("probe history unavailable")
		return nil
	}
	return store
}

func main() {
	_ = godotenv.Load(".env")

	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	generateOut := generateCmd.String("out", "", "Output path; - = stdout (default: KICKSTREAM_PLAYLIST_PATH)")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeIn := probeCmd.String("playlist", "", "Playlist to probe (default: KICKSTREAM_PLAYLIST_PATH)")
	probeOut := probeCmd.String("out", "", "Output path; - = stdout (default: rewrite in place)")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runAddr := runCmd.String("addr", "", "Listen address (default: KICKSTREAM_LISTEN_ADDR)")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|generate|probe> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  run       Regenerate + stream checks on their intervals, serve the playlist (for systemd)\n")
		fmt.Fprintf(os.Stderr, "  generate  Fetch schedules, build the playlist once, write it\n")
		fmt.Fprintf(os.Stderr, "  probe     Probe an existing playlist, refresh annotations and proxy routing\n")
		os.Exit(1)
	}

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	switch os.Args[1] {
	case "generate":
		_ = generateCmd.Parse(os.Args[2:])
		out := *generateOut
		if out == "" {
			out = cfg.PlaylistPath
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openHistory(cfg, log)
		defer store.Close()

		path := out
		if path == "-" {
			path = "" // stdout only, skip the disk mirror
		}
		runner := newRunner(cfg, store, log, path)
		runner.Regenerate(ctx)
		text, _ := runner.Current()
		if text == "" {
			log.Error().Msg("no playlist produced")
			os.Exit(1)
		}
		if out == "-" {
			fmt.Print(text)
		} else {
			log.Info().Str("path", out).Msg("playlist written")
		}

	case "probe":
		_ = probeCmd.Parse(os.Args[2:])
		in := *probeIn
		if in == "" {
			in = cfg.PlaylistPath
		}
		raw, err := os.ReadFile(in)
		if err != nil {
			log.Error().Err(err).Str("path", in).Msg("read playlist")
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openHistory(cfg, log)
		defer store.Close()

		text := newProber(cfg, store, log).RefreshText(ctx, string(raw), time.Now())
		out := *probeOut
		if out == "" {
			out = in
		}
		if out == "-" {
			fmt.Print(text)
		} else if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
			log.Error().Err(err).Str("path", out).Msg("write playlist")
			os.Exit(1)
		}

	case "run":
		_ = runCmd.Parse(os.Args[2:])
		addr := *runAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openHistory(cfg, log)
		defer store.Close()

		runner := newRunner(cfg, store, log, cfg.PlaylistPath)
		if cfg.PlaylistPath != "" {
			if raw, err := os.ReadFile(cfg.PlaylistPath); err == nil {
				if st, err := os.Stat(cfg.PlaylistPath); err == nil {
					runner.Restore(string(raw), st.ModTime())
				}
			}
		}

		go runner.Run(ctx)

		// SIGHUP forces a full regeneration outside the schedule.
		sigHUP := make(chan os.Signal, 1)
		signal.Notify(sigHUP, syscall.SIGHUP)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-sigHUP:
					log.Info().Msg("SIGHUP received, regenerating playlist")
					runner.Regenerate(ctx)
				}
			}
		}()

		rl := relay.New(relay.Options{
			UserAgent: cfg.UserAgent,
			Referer:   cfg.Referer,
			Origin:    cfg.Origin,
			BaseURL:   cfg.BaseURL,
		}, log)
		srv := server.New(addr, cfg.BaseURL, runner, store, rl, log)
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Use run, generate, or probe.\n", os.Args[1])
		os.Exit(1)
	}
}
