package video

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	mediainfo "github.com/dreamCodeMan/go-mediainfo"

	"catalogizer/subtitles/internal/language"
)

// RefineOptions carries the subset of the pipeline's options a refiner
// needs: whether to force re-fetching data that already looks complete.
// Timeout is carried but not read by any refiner in this package; the
// OMDB refiner uses its own fixed HTTP client timeout.
type RefineOptions struct {
	Force   bool
	Timeout time.Duration
}

// Refiner enriches a Video record from one external source. Refiners
// never fail the pipeline: a failing refiner logs and returns the
// video unchanged.
type Refiner interface {
	Name() string
	Refine(ctx context.Context, v *Video, opts RefineOptions) *Video
}

// Pipeline runs an ordered, sequential sequence of Refiners over a single
// Video, each depending on the mutations of the one before it.
type Pipeline struct {
	refiners []Refiner
	logger   *zap.Logger
}

// NewPipeline builds a refiner Pipeline in declaration order.
func NewPipeline(logger *zap.Logger, refiners ...Refiner) *Pipeline {
	return &Pipeline{refiners: refiners, logger: logger}
}

// Refine runs every refiner in order, swallowing individual failures.
func (p *Pipeline) Refine(ctx context.Context, v *Video, opts RefineOptions) *Video {
	for _, r := range p.refiners {
		refined := func() (out *Video) {
			defer func() {
				if rec := recover(); rec != nil {
					if p.logger != nil {
						p.logger.Warn("refiner panicked, skipping",
							zap.String("refiner", r.Name()), zap.Any("panic", rec))
					}
					out = v
				}
			}()
			return r.Refine(ctx, v, opts)
		}()
		if refined != nil {
			v = refined
		}
	}
	return v
}

// FilesystemRefiner fills in size and content hashes from the file on
// disk. It is the cheapest refiner and runs first.
type FilesystemRefiner struct {
	logger *zap.Logger
}

// NewFilesystemRefiner constructs the filesystem-stat refiner.
func NewFilesystemRefiner(logger *zap.Logger) *FilesystemRefiner {
	return &FilesystemRefiner{logger: logger}
}

func (r *FilesystemRefiner) Name() string { return "filesystem" }

func (r *FilesystemRefiner) Refine(_ context.Context, v *Video, opts RefineOptions) *Video {
	stat, err := os.Stat(v.Name)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("filesystem refiner: stat failed", zap.String("video", v.Name), zap.Error(err))
		}
		return v
	}
	v.Size = stat.Size()

	if v.Hashes == nil {
		v.Hashes = map[string]string{}
	}
	if _, ok := v.Hashes["opensubtitles"]; !ok || opts.Force {
		if h, err := OpenSubtitlesHash(v.Name); err == nil && h != "" {
			v.Hashes["opensubtitles"] = h
		} else if err != nil && r.logger != nil {
			r.logger.Warn("filesystem refiner: opensubtitles hash failed", zap.String("video", v.Name), zap.Error(err))
		}
	}
	if _, ok := v.Hashes["napiprojekt"]; !ok || opts.Force {
		if h, err := NapiprojektHash(v.Name); err == nil {
			v.Hashes["napiprojekt"] = h
		} else if r.logger != nil {
			r.logger.Warn("filesystem refiner: napiprojekt hash failed", zap.String("video", v.Name), zap.Error(err))
		}
	}
	return v
}

// MetadataRefiner reads embedded track metadata (resolution, frame rate,
// codecs, duration, embedded subtitle languages) via the mediainfo CLI
// wrapper, tolerant of missing or unreadable tracks.
type MetadataRefiner struct {
	logger *zap.Logger
}

// NewMetadataRefiner constructs the embedded-metadata refiner.
func NewMetadataRefiner(logger *zap.Logger) *MetadataRefiner {
	return &MetadataRefiner{logger: logger}
}

func (r *MetadataRefiner) Name() string { return "metadata" }

func (r *MetadataRefiner) Refine(_ context.Context, v *Video, opts RefineOptions) *Video {
	if v.VideoCodec != "" && v.AudioCodec != "" && v.Resolution != "" && !opts.Force {
		return v
	}

	info, err := mediainfo.GetMediaInfo(v.Name)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("metadata refiner: mediainfo failed", zap.String("video", v.Name), zap.Error(err))
		}
		return v
	}

	for _, track := range info.Media.Track {
		switch track.Type {
		case "Video":
			if v.VideoCodec == "" {
				v.VideoCodec = track.CodecID
			}
			if v.Resolution == "" && track.Height != "" {
				v.Resolution = resolutionFromHeight(track.Height)
			}
			if fr, err := strconv.ParseFloat(track.FrameRate, 64); err == nil && v.FrameRate == 0 {
				v.FrameRate = fr
			}
			if d, err := strconv.ParseFloat(track.Duration, 64); err == nil && v.Duration == 0 {
				v.Duration = d / 1000
			}
		case "Audio":
			if v.AudioCodec == "" {
				v.AudioCodec = track.CodecID
			}
		case "Text":
			if track.Language == "" {
				continue
			}
			lang, err := language.FromIETF(track.Language)
			if err != nil {
				continue
			}
			if !v.HasSubtitleLanguage(lang) {
				v.SubtitleLanguages = append(v.SubtitleLanguages, lang)
			}
		}
	}
	return v
}

func resolutionFromHeight(height string) string {
	h, err := strconv.Atoi(height)
	if err != nil {
		return ""
	}
	switch {
	case h >= 2000:
		return "2160p"
	case h >= 1000:
		return "1080p"
	case h >= 700:
		return "720p"
	default:
		return "480p"
	}
}
