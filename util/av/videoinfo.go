package av

import (
	"fmt"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type MediaInfo struct {
	Duration float64
	Width    int64
	Height   int64
	Streams  int64
}

// GetMediaInfo probes a finished output file with ffprobe.
func GetMediaInfo(filePath string) (*MediaInfo, error) {
	probeData, err := ffmpeg.Probe(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filePath, err)
	}
	info := &MediaInfo{
		Duration: gjson.Get(probeData, "format.duration").Float(),
		Streams:  gjson.Get(probeData, "streams.#").Int(),
	}
	video := gjson.Get(probeData, `streams.#(codec_type=="video")`)
	if video.Exists() {
		info.Width = video.Get("width").Int()
		info.Height = video.Get("height").Int()
	}
	return info, nil
}
