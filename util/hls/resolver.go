package hls

import (
	"context"
	"fmt"

	"ncd/models"
	"ncd/util"
	"ncd/util/parser"

	"go.uber.org/zap"
)

// Resolver follows variant playlists down to a media playlist,
// always picking the highest bandwidth rendition.
type Resolver struct {
	transfer *util.Transfer
	maxDepth int
}

func NewResolver(transfer *util.Transfer, maxDepth int) *Resolver {
	return &Resolver{
		transfer: transfer,
		maxDepth: maxDepth,
	}
}

func (r *Resolver) Resolve(ctx context.Context, playlistURL string) (*models.MediaPlaylist, error) {
	for depth := 0; depth <= r.maxDepth; depth++ {
		content, err := r.transfer.FetchInMemory(ctx, playlistURL)
		if err != nil {
			return nil, err
		}
		playlist, err := parser.ParseM3U8Content(content, playlistURL)
		if err != nil {
			return nil, err
		}

		switch playlist.Kind {
		case models.PlaylistKindMedia:
			if len(playlist.Media.Segments) == 0 {
				return nil, fmt.Errorf("%w: no segments in %s", util.ErrMalformedPlaylist, playlistURL)
			}
			zap.S().Debugf(
				"resolved media playlist with %d segments (%.1fs)",
				len(playlist.Media.Segments),
				playlist.Media.Duration(),
			)
			return playlist.Media, nil
		case models.PlaylistKindVariant:
			best := playlist.Variant.Best()
			if best == nil {
				return nil, fmt.Errorf("%w: no variants in %s", util.ErrMalformedPlaylist, playlistURL)
			}
			zap.S().Infof(
				"selected variant: bandwidth=%d resolution=%s",
				best.Bandwidth, best.Resolution,
			)
			playlistURL = best.URI
		default:
			return nil, fmt.Errorf("%w: unknown playlist kind %s", util.ErrParse, playlist.Kind)
		}
	}
	return nil, fmt.Errorf(
		"%w: variant playlists nested deeper than %d",
		util.ErrMalformedPlaylist, r.maxDepth,
	)
}
