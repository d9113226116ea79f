package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

func DataRoot() string { return filepath.Join(".", "data") }

func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}

// VideoID derives a stable identifier from a video path: the lowercased
// base name plus a short hash of the full cleaned path.
func VideoID(videoPath string) string {
	cleanPath := filepath.Clean(videoPath)
	baseName := filepath.Base(cleanPath)

	name := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	name = strings.ToLower(name)

	hash := md5.Sum([]byte(cleanPath))
	hashStr := hex.EncodeToString(hash[:])

	return fmt.Sprintf("%s_%s", name, hashStr[:8])
}

func FormatTime(sec float64) string {
	sec = math.Max(sec, 0)
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}
