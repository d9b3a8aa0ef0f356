package util

type Error struct {
	Message string
}

func (err *Error) Error() string {
	return err.Message
}

var (
	ErrTransport         = &Error{Message: "transport error"}
	ErrParse             = &Error{Message: "failed parsing playlist"}
	ErrMalformedPlaylist = &Error{Message: "malformed playlist"}
	ErrKeyTooShort       = &Error{Message: "decryption key is shorter than 16 bytes"}
	ErrInvalidIV         = &Error{Message: "invalid initialization vector"}
	ErrDecryption        = &Error{Message: "failed decrypting segment"}
	ErrSink              = &Error{Message: "muxer failed"}
	ErrConduitClosed     = &Error{Message: "muxer stopped accepting segments"}
	ErrFileTooLarge      = &Error{Message: "response is too large"}
	ErrFFmpegNotFound    = &Error{Message: "ffmpeg not found in PATH"}
)
