package utility

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the canonical DD-MM-YYYY, HH:MM:SS form shown to users
const TimestampLayout = "02-01-2006, 15:04:05"

var (
	canonicalTimestamp = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}, \d{2}:\d{2}:\d{2}$`)

	// DD/MM/YYYY, HH.MM.SS as produced by the id-ID locale
	dottedTimestamp = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}),?\s*(\d{1,2})\.(\d{1,2})\.(\d{1,2})$`)

	// MM/DD/YYYY, HH:MM:SS as produced by the en-US locale
	usTimestamp = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}),?\s*(\d{1,2}):(\d{1,2}):(\d{1,2})$`)

	fallbackLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC1123,
	}

	byteUnits = []string{"B", "KB", "MB", "GB", "TB"}
)

func MakeDirIfNotExists(dirpath string) error {
	if dirpath == "" || dirpath == "." {
		return nil
	}
	if _, err := os.Stat(dirpath); os.IsNotExist(err) {
		err := os.MkdirAll(dirpath, os.ModeDir|0o755)
		if err != nil {
			return err
		}
	}
	return nil
}

// MakeParentDir creates the directory holding file if it is missing
func MakeParentDir(file string) error {
	return MakeDirIfNotExists(filepath.Dir(file))
}

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// NormalizeTimestamp converts the locale formats stored by older versions into
// TimestampLayout. Unrecognized input is returned unchanged.
func NormalizeTimestamp(ts string) string {
	if canonicalTimestamp.MatchString(ts) {
		return ts
	}
	if m := dottedTimestamp.FindStringSubmatch(ts); m != nil {
		return fmt.Sprintf("%s-%s-%s, %s:%s:%s", pad(m[1]), pad(m[2]), m[3], pad(m[4]), pad(m[5]), pad(m[6]))
	}
	if m := usTimestamp.FindStringSubmatch(ts); m != nil {
		return fmt.Sprintf("%s-%s-%s, %s:%s:%s", pad(m[2]), pad(m[1]), m[3], pad(m[4]), pad(m[5]), pad(m[6]))
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return FormatTimestamp(t.Local())
		}
	}
	return ts
}

func pad(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// FormatBytes renders a byte count with binary units, e.g. 1536 -> "1.5 KB"
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v, i := float64(bytes), 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + byteUnits[i]
}
