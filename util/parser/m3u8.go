package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"ncd/models"
	"ncd/util"

	"github.com/grafov/m3u8"
)

// ParseM3U8Content decodes an HLS playlist. every URI in the
// result is absolute, resolved against baseURL.
func ParseM3U8Content(
	content []byte,
	baseURL string,
) (*models.Playlist, error) {
	baseURLObj, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url: %w", util.ErrParse, err)
	}

	// lenient decoding tolerates the minor syntax slips real
	// servers make, so the header is checked here instead
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\ufeff \t\r\n"), []byte("#EXTM3U")) {
		return nil, fmt.Errorf("%w: missing #EXTM3U header", util.ErrParse)
	}

	buf := bytes.NewBuffer(content)
	playlist, listType, err := m3u8.DecodeFrom(buf, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrParse, err)
	}

	switch listType {
	case m3u8.MASTER:
		variant := parseMasterPlaylist(
			playlist.(*m3u8.MasterPlaylist),
			baseURLObj,
		)
		return &models.Playlist{
			Kind:    models.PlaylistKindVariant,
			Variant: variant,
		}, nil
	case m3u8.MEDIA:
		media, err := parseMediaPlaylist(
			playlist.(*m3u8.MediaPlaylist),
			baseURLObj,
		)
		if err != nil {
			return nil, err
		}
		return &models.Playlist{
			Kind:  models.PlaylistKindMedia,
			Media: media,
		}, nil
	}

	return nil, fmt.Errorf("%w: unsupported m3u8 playlist type", util.ErrParse)
}

func parseMasterPlaylist(
	playlist *m3u8.MasterPlaylist,
	baseURL *url.URL,
) *models.VariantPlaylist {
	variants := make([]*models.Variant, 0, len(playlist.Variants))
	for _, variant := range playlist.Variants {
		if variant == nil || variant.URI == "" {
			continue
		}
		variants = append(variants, &models.Variant{
			Bandwidth:  variant.Bandwidth,
			Resolution: variant.Resolution,
			Codecs:     variant.Codecs,
			URI:        resolveURL(baseURL, variant.URI),
		})
	}
	return &models.VariantPlaylist{
		URL:      baseURL.String(),
		Variants: variants,
	}
}

func parseMediaPlaylist(
	playlist *m3u8.MediaPlaylist,
	baseURL *url.URL,
) (*models.MediaPlaylist, error) {
	if playlist.Map != nil && playlist.Map.URI != "" {
		// fragmented mp4 cannot be fed as a transport stream
		return nil, fmt.Errorf("%w: initialization segments are not supported", util.ErrParse)
	}

	segments := make([]*models.Segment, 0, playlist.Count())
	for _, segment := range playlist.Segments {
		if segment == nil || segment.URI == "" {
			continue
		}
		if segment.Limit > 0 {
			return nil, fmt.Errorf("%w: byte-range segments are not supported", util.ErrParse)
		}
		var key *models.KeyRef
		if segment.Key != nil {
			key = &models.KeyRef{
				Method: segment.Key.Method,
				URI:    resolveKeyURL(baseURL, segment.Key.URI),
				IV:     segment.Key.IV,
			}
		}
		segments = append(segments, &models.Segment{
			URI:      resolveURL(baseURL, segment.URI),
			Duration: segment.Duration,
			Sequence: segment.SeqId,
			Key:      key,
		})
	}

	return &models.MediaPlaylist{
		URL:            baseURL.String(),
		MediaSequence:  playlist.SeqNo,
		TargetDuration: float64(playlist.TargetDuration),
		Segments:       segments,
	}, nil
}

func resolveKeyURL(base *url.URL, uri string) string {
	if uri == "" {
		return ""
	}
	return resolveURL(base, uri)
}

func resolveURL(base *url.URL, uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}
