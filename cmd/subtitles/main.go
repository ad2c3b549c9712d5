// Command subtitles is a thin executable exercising the engine end to
// end: it loads a TOML config, guesses a Video from each path argument,
// runs the pipeline, and reports what was downloaded. The HTTP/CLI
// front-end proper is out of scope; this binary exists to prove the
// wiring, not to be a product.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"catalogizer/subtitles/internal/config"
	"catalogizer/subtitles/internal/language"
	"catalogizer/subtitles/internal/metrics"
	"catalogizer/subtitles/internal/pipeline"
	"catalogizer/subtitles/internal/video"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults built in if omitted)")
	languagesFlag := flag.String("languages", "en", "comma-separated IETF language tags to request")
	dump := flag.Bool("metrics", false, "dump registered metric families on exit")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "subtitles: logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *configPath, *languagesFlag, *dump, flag.Args()); err != nil {
		logger.Fatal("subtitles: fatal", zap.Error(err))
	}
}

func run(logger *zap.Logger, configPath, languagesFlag string, dumpMetrics bool, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("usage: subtitles [-config file.toml] [-languages en,fr] video.mkv [video2.mkv ...]")
	}

	opts := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		opts = loaded
	}

	languages, err := parseLanguages(languagesFlag)
	if err != nil {
		return err
	}

	p, err := pipeline.New(opts, logger)
	if err != nil {
		return fmt.Errorf("constructing pipeline: %w", err)
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	videos := make([]*video.Video, 0, len(paths))
	for _, path := range paths {
		v, err := video.FromName(path)
		if err != nil {
			logger.Warn("subtitles: cannot guess video kind, skipping", zap.String("path", path), zap.Error(err))
			continue
		}
		videos = append(videos, v)
	}

	results, err := p.DownloadBestSubtitles(ctx, videos, languages)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	for v, subs := range results {
		logger.Info("subtitles: result",
			zap.String("video", v.Name), zap.Int("downloaded", len(subs)))
	}

	if dumpMetrics {
		families, err := metrics.Gather()
		if err != nil {
			return fmt.Errorf("gathering metrics: %w", err)
		}
		for _, f := range families {
			fmt.Printf("%s: %s\n", f.Name, f.Help)
		}
	}

	return nil
}

func parseLanguages(csv string) ([]language.Language, error) {
	var out []language.Language
	for _, tag := range strings.Split(csv, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		l, err := language.FromIETF(tag)
		if err != nil {
			return nil, fmt.Errorf("parsing language %q: %w", tag, err)
		}
		out = append(out, l)
	}
	return out, nil
}
