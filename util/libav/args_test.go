package libav

import (
	"testing"

	"github.com/matryer/is"
)

func TestBuildMuxArgs(t *testing.T) {
	is := is.New(t)

	args, err := BuildMuxArgs("", nil, "")
	is.NoErr(err)
	is.Equal(args["f"], "matroska") // mkv is the default
	is.Equal(args["c"], "copy")     // streams are never re-encoded

	args, err = BuildMuxArgs("mkv", map[string]string{"title": "Pilot", "artist": "Someone"}, "cover.jpg")
	is.NoErr(err)
	is.Equal(args["metadata:g"], []string{"artist=Someone", "title=Pilot"}) // sorted for stable command lines
	is.Equal(args["attach"], "cover.jpg")
	is.Equal(args["metadata:s:t:0"], []string{"filename=cover.jpg", "mimetype=image/jpeg"})

	args, err = BuildMuxArgs("mp4", nil, "")
	is.NoErr(err)
	is.Equal(args["f"], "mp4")

	_, err = BuildMuxArgs("mp4", nil, "cover.jpg")
	is.True(err != nil) // attachments are a matroska feature

	_, err = BuildMuxArgs("avi", nil, "")
	is.True(err != nil)
}
