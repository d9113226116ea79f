package processors

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"videoJudge/core"
)

var youtubeRe = regexp.MustCompile(`^(https?://)?(www\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|.+\?v=)?([^&=%\?]{11})`)

var videoExts = map[string]bool{".mp4": true, ".avi": true, ".mov": true, ".mkv": true}
var audioExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".ogg": true}

// ResolvedInput describes a local media file ready for the pipeline.
type ResolvedInput struct {
	Path      string
	AudioOnly bool
	// Downloaded is set when the file was fetched from a URL and can be
	// removed after the run.
	Downloaded bool
}

func IsYouTubeURL(raw string) bool {
	return youtubeRe.MatchString(raw)
}

// ResolveInput turns a raw input (local path or YouTube URL) into a local
// media file. YouTube URLs are downloaded into workDir via yt-dlp. Local
// paths must carry a supported video or audio extension.
func ResolveInput(raw, workDir string) (ResolvedInput, error) {
	if IsYouTubeURL(raw) {
		path, err := downloadYouTube(raw, workDir)
		if err != nil {
			return ResolvedInput{}, err
		}
		return ResolvedInput{Path: path, Downloaded: true}, nil
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return ResolvedInput{}, fmt.Errorf("%w: unsupported URL %s", core.ErrInvalidInput, raw)
	}

	ext := strings.ToLower(filepath.Ext(raw))
	switch {
	case videoExts[ext]:
		return ResolvedInput{Path: raw}, nil
	case audioExts[ext]:
		return ResolvedInput{Path: raw, AudioOnly: true}, nil
	default:
		return ResolvedInput{}, fmt.Errorf("%w: unsupported file type %q", core.ErrInvalidInput, ext)
	}
}

func downloadYouTube(url, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %v", err)
	}
	outPath := filepath.Join(workDir, "video.mp4")

	cmd := exec.Command("yt-dlp",
		"--format", "best[ext=mp4]/best",
		"--output", outPath,
		"--quiet", "--no-warnings",
		url)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp %s: %v", url, err)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("download produced no file for %s", url)
	}
	return outPath, nil
}
