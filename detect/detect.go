// Package detect works out which equipment wrote a test folder and which
// channel folders it holds.
package detect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
)

const patternDir = "Pattern"

var (
	ErrUnsupportedVendor = errors.New("unsupported vendor")
	ErrChannelMismatch   = errors.New("channel mismatch")
)

// Detect reports PNE when path has a Pattern folder and Toyo otherwise.
func Detect(path string) (rawlog.Vendor, error) {
	if err := checkDir(path); err != nil {
		return "", err
	}
	info, err := os.Stat(filepath.Join(path, patternDir))
	if err == nil && info.IsDir() {
		return rawlog.PNE, nil
	}
	return rawlog.Toyo, nil
}

// Supported returns ErrUnsupportedVendor for vendors whose logs cannot be
// analyzed.
func Supported(v rawlog.Vendor) error {
	if v != rawlog.Toyo {
		return fmt.Errorf("%w: %s", ErrUnsupportedVendor, v)
	}
	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// Channels lists the channel folders of a test folder. Toyo channels are
// numbered folders in numeric order, PNE channels are every folder apart
// from Pattern in name order.
func Channels(path string, v rawlog.Vendor) ([]string, error) {
	if err := checkDir(path); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var channels []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == patternDir {
			continue
		}
		if v == rawlog.Toyo && !isDigits(e.Name()) {
			continue
		}
		channels = append(channels, e.Name())
	}
	if v == rawlog.Toyo {
		slices.SortFunc(channels, func(a, b string) int {
			x, _ := strconv.Atoi(a)
			y, _ := strconv.Atoi(b)
			return x - y
		})
	} else {
		slices.Sort(channels)
	}
	return channels, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var bracketed = regexp.MustCompile(`\[([^\]]+)\]`)

// ChannelLabel shortens PNE folder names such as "M02Ch073[073]" to the
// bracketed number.
func ChannelLabel(name string) string {
	if m := bracketed.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// LotAndChannel splits a channel path into its lot (parent folder) and
// channel folder names.
func LotAndChannel(path string) (lot, channel string) {
	clean := filepath.Clean(path)
	channel = filepath.Base(clean)
	parent := filepath.Dir(clean)
	if parent != clean && parent != "." && parent != string(filepath.Separator) {
		lot = filepath.Base(parent)
	}
	return lot, channel
}

// PathGroup is a set of test folders that continue the same cells.
type PathGroup struct {
	Paths     []string
	Vendor    rawlog.Vendor
	Channels  []string
	Validated bool
}

// ValidateContinuous checks that every path has the same vendor and
// channel folders as the first and returns those channels.
func ValidateContinuous(paths []string) ([]string, error) {
	if len(paths) < 2 {
		return nil, fmt.Errorf("need at least 2 paths to validate, got %d", len(paths))
	}
	vendor, err := Detect(paths[0])
	if err != nil {
		return nil, err
	}
	first, err := Channels(paths[0], vendor)
	if err != nil {
		return nil, err
	}
	for _, p := range paths[1:] {
		v, err := Detect(p)
		if err != nil {
			return nil, err
		}
		if v != vendor {
			return nil, fmt.Errorf("%w: %s is %s, %s is %s", ErrChannelMismatch, paths[0], vendor, p, v)
		}
		channels, err := Channels(p, v)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(first, channels) {
			return nil, fmt.Errorf("%w: [%s] vs [%s] in %s", ErrChannelMismatch,
				strings.Join(first, " "), strings.Join(channels, " "), p)
		}
	}
	return first, nil
}

// NewPathGroup detects the group's vendor and channels. With validate set
// a group of several paths must pass ValidateContinuous.
func NewPathGroup(paths []string, validate bool) (PathGroup, error) {
	if len(paths) == 0 {
		return PathGroup{}, errors.New("empty path list")
	}
	vendor, err := Detect(paths[0])
	if err != nil {
		return PathGroup{}, err
	}
	channels, err := Channels(paths[0], vendor)
	if err != nil {
		return PathGroup{}, err
	}
	g := PathGroup{Paths: paths, Vendor: vendor, Channels: channels}
	switch {
	case len(paths) == 1:
		g.Validated = true
	case validate:
		if _, err := ValidateContinuous(paths); err != nil {
			return PathGroup{}, err
		}
		g.Validated = true
	}
	return g, nil
}
