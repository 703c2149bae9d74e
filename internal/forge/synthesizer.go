package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/modforge/internal/services"
	"github.com/jwebster45206/modforge/pkg/mod"
	"github.com/jwebster45206/modforge/pkg/response"
	"github.com/jwebster45206/modforge/pkg/rules"
	"golang.org/x/sync/errgroup"
)

// ErrAssetSynthesis is returned when any asset of a unit could not be produced.
var ErrAssetSynthesis = errors.New("asset synthesis failed")

const DefaultImageConcurrency = 4

// Synthesizer produces the image and sound assets of one unit.
type Synthesizer struct {
	images      services.ImageService
	rules       *rules.RuleSet
	concurrency int
	logger      *slog.Logger
}

func NewSynthesizer(images services.ImageService, rs *rules.RuleSet, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		images:      images,
		rules:       rs,
		concurrency: DefaultImageConcurrency,
		logger:      logger,
	}
}

// Synthesize requests every image concurrently and stores each result under
// its declared filename. The first failure cancels the remaining requests
// and no assets are returned.
//
// Sounds are not generated: every declared sound name gets a copy of the
// single audio clip supplied with the request.
func (s *Synthesizer) Synthesize(ctx context.Context, reqs []response.ImageRequest, soundNames []string, audio *mod.Attachment) ([]mod.Asset, []mod.Asset, error) {
	if len(soundNames) > 0 && audio == nil {
		return nil, nil, fmt.Errorf("%w: sounds %v declared without an audio clip", ErrAssetSynthesis, soundNames)
	}

	start := time.Now()
	images := make([]mod.Asset, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			dataURL, err := s.images.GenerateImage(gctx, s.rules.ImageStyle.Prefix+req.Prompt, s.rules.ImageStyle.AspectRatio)
			if err != nil {
				return fmt.Errorf("%w: image %s: %w", ErrAssetSynthesis, req.Name, err)
			}
			att, err := mod.ParseDataURL(dataURL)
			if err != nil || !att.IsImage() {
				return fmt.Errorf("%w: image %s: generator returned no image", ErrAssetSynthesis, req.Name)
			}
			images[i] = mod.Asset{Name: req.Name, DataURL: dataURL}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("Image synthesis failed", "images", len(reqs), "error", err)
		return nil, nil, err
	}

	var sounds []mod.Asset
	if len(soundNames) > 0 {
		dataURL := audio.DataURL()
		sounds = make([]mod.Asset, len(soundNames))
		for i, name := range soundNames {
			sounds[i] = mod.Asset{Name: name, DataURL: dataURL}
		}
	}

	s.logger.Debug("Assets synthesized", "images", len(images), "sounds", len(sounds),
		"duration_ms", time.Since(start).Milliseconds())
	return images, sounds, nil
}
