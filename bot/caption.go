package bot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"wetterpost/post"
)

// CaptionPlaceholder is replaced by the time of the water reading.
const CaptionPlaceholder = "w_time"

// BuildCaption replaces every placeholder with "(HH:MM)", or removes it when
// there is no reading.
func BuildCaption(template string, water *post.WaterReading) string {
	replacement := ""
	if water != nil && water.Timestamp != "" {
		replacement = "(" + water.Timestamp + ")"
	}
	return strings.ReplaceAll(template, CaptionPlaceholder, replacement)
}

// LoadCaptionTemplate reads the caption file. A missing file yields an empty
// caption.
func LoadCaptionTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read caption template: %w", err)
	}
	return string(data), nil
}
