package util

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aki237/nscjar"
	"github.com/pkg/errors"
)

// most filesystems limit a name to 255 bytes
const MaxFilenameLength = 255

var (
	cookiesCache      = make(map[string][]*http.Cookie)
	cookiesCacheMutex sync.Mutex
)

var filenameReplacer = strings.NewReplacer(
	`"`, "＂",
	"*", "＊",
	"/", "／",
	":", "：",
	"<", "＜",
	">", "＞",
	"?", "？",
	`\`, "＼",
	"|", "￨",
	"\t", " ",
	"\n", " ",
	"\r", " ",
	"\v", " ",
	"\f", " ",
)

// replaces characters that are not allowed in file names
// with their full-width equivalents
func SanitizeFilename(name string) string {
	return strings.TrimSpace(filenameReplacer.Replace(name))
}

// cuts s to at most maxLen bytes without splitting a character
func TruncateByBytes(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := maxLen
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

// shortens the stem of filename so that stem+suffix+extension
// fits in maxLen bytes
func TruncateFilename(filename string, maxLen int, suffix string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	maxStem := max(maxLen-len(ext)-len(suffix), 0)
	return TruncateByBytes(stem, maxStem) + suffix + ext
}

// builds a safe output file name from a title
func OutputFilename(title string, extension string) (string, error) {
	name := SanitizeFilename(title)
	if name == "" {
		return "", errors.New("empty file name")
	}
	return TruncateFilename(name+"."+extension, MaxFilenameLength, ""), nil
}

func ParseCookieFile(cookiePath string) ([]*http.Cookie, error) {
	cookiesCacheMutex.Lock()
	defer cookiesCacheMutex.Unlock()

	cachedCookies, ok := cookiesCache[cookiePath]
	if ok {
		return cachedCookies, nil
	}
	cookieFile, err := os.Open(cookiePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer cookieFile.Close()

	var parser nscjar.Parser
	cookies, err := parser.Unmarshal(cookieFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	cookiesCache[cookiePath] = cookies
	return cookies, nil
}

func CheckFFmpeg(ffmpegPath string) error {
	if _, err := exec.LookPath(ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, ffmpegPath)
	}
	return nil
}
