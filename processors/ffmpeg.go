package processors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

func runFFmpeg(args []string) error {
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func probeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, err
	}
	s := strings.TrimSpace(out.String())
	return strconv.ParseFloat(s, 64)
}

type probeStream struct {
	RFrameRate    string `json:"r_frame_rate"`
	NbReadPackets string `json:"nb_read_packets"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
}

func probeVideoStream(path string) (probeStream, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=r_frame_rate,nb_read_packets,width,height",
		"-of", "json", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return probeStream{}, err
	}
	var parsed struct {
		Streams []probeStream `json:"streams"`
	}
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return probeStream{}, fmt.Errorf("parse ffprobe output: %v", err)
	}
	if len(parsed.Streams) == 0 {
		return probeStream{}, fmt.Errorf("no video stream in %s", path)
	}
	return parsed.Streams[0], nil
}

// parseFrameRate converts ffprobe's rational frame rate ("30000/1001") to a float.
func parseFrameRate(r string) (float64, error) {
	if num, den, ok := strings.Cut(r, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in frame rate %q", r)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(r, 64)
}
