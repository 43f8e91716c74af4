//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func probeDurationSeconds(mp4Path string) (float64, error) {
	s, err := ffprobe(mp4Path, "-show_entries", "format=duration")
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

func probeVideoSize(mp4Path string) (int, int, error) {
	s, err := ffprobe(mp4Path, "-select_streams", "v:0", "-show_entries", "stream=width,height")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe size output %q", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func probeHasAudio(mp4Path string) (bool, error) {
	s, err := ffprobe(mp4Path, "-select_streams", "a", "-show_entries", "stream=index")
	if err != nil {
		return false, err
	}
	return s != "", nil
}

func ffprobe(mp4Path string, args ...string) (string, error) {
	full := append([]string{"-v", "error"}, args...)
	full = append(full, "-of", "default=noprint_wrappers=1:nokey=1", mp4Path)
	b, err := exec.Command("ffprobe", full...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	return strings.TrimSpace(string(b)), nil
}
