package libav

import (
	"fmt"
	"maps"
	"slices"

	"ncd/models"
)

const DefaultFormat = "mkv"

var muxers = map[string]string{
	"mkv": "matroska",
	"mp4": "mp4",
	"ts":  "mpegts",
}

// BuildMuxArgs returns the output options for remuxing into
// the given container without re-encoding. metadata is written
// at the global level and cover, when set, is attached as the
// container's cover art.
func BuildMuxArgs(
	format string,
	metadata map[string]string,
	cover string,
) (models.MuxArgs, error) {
	if format == "" {
		format = DefaultFormat
	}
	muxer, ok := muxers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	args := models.MuxArgs{
		"c": "copy",
		"f": muxer,
	}
	if len(metadata) > 0 {
		entries := make([]string, 0, len(metadata))
		for _, key := range slices.Sorted(maps.Keys(metadata)) {
			entries = append(entries, key+"="+metadata[key])
		}
		args["metadata:g"] = entries
	}
	if cover != "" {
		if muxer != "matroska" {
			return nil, fmt.Errorf("cover attachments need the mkv format, got %s", format)
		}
		args["attach"] = cover
		args["metadata:s:t:0"] = []string{
			"filename=cover.jpg",
			"mimetype=image/jpeg",
		}
	}
	return args, nil
}

func FormatExtension(format string) string {
	if format == "" {
		return DefaultFormat
	}
	return format
}
