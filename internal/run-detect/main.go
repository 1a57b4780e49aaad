package rundetect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/TheCacophonyProject/battery-analyzer/detect"
	"github.com/TheCacophonyProject/battery-analyzer/export"
	"github.com/TheCacophonyProject/go-utils/logging"
	arg "github.com/alexflint/go-arg"
)

var version = "No version provided"

var log = logging.NewLogger("info")

var out io.Writer = os.Stdout

type Args struct {
	Paths    []string `arg:"positional" help:"test folders to inspect"`
	PathFile string   `arg:"--path-file" help:"tab separated file with a cyclepath column"`
	Validate bool     `arg:"--validate" help:"check the folders continue the same channels"`
	logging.LogArgs
}

func (Args) Version() string {
	return version
}

var defaultArgs = Args{}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}

	log = logging.NewLogger(args.LogLevel)

	entries, err := pathEntries(args)
	if err != nil {
		return err
	}
	return inspect(entries, args.Validate)
}

func pathEntries(args Args) ([]detect.PathEntry, error) {
	var entries []detect.PathEntry
	for _, p := range args.Paths {
		entries = append(entries, detect.PathEntry{Path: p})
	}
	if args.PathFile != "" {
		f, err := os.Open(args.PathFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		fromFile, err := detect.ParsePathFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fromFile...)
	}
	if len(entries) == 0 {
		return nil, errors.New("no paths given")
	}
	return entries, nil
}

func inspect(entries []detect.PathEntry, validate bool) error {
	t := export.NewTable(out, "name", "lot", "vendor", "channels", "supported", "path")
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		vendor, err := detect.Detect(e.Path)
		if err != nil {
			return err
		}
		channels, err := detect.Channels(e.Path, vendor)
		if err != nil {
			return err
		}
		labels := ""
		for j, ch := range channels {
			if j > 0 {
				labels += " "
			}
			labels += detect.ChannelLabel(ch)
		}
		supported := detect.Supported(vendor) == nil
		if !supported {
			log.Warnf("%s holds %s logs which cannot be analyzed", e.Path, vendor)
		}
		name := e.Name
		if name == "" {
			_, name = detect.LotAndChannel(e.Path)
		}
		lot, _ := detect.LotAndChannel(e.Path)
		t.AddRow(name, lot, string(vendor), labels, strconv.FormatBool(supported), e.Path)
	}
	if err := t.Render(); err != nil {
		return err
	}

	if !validate || len(paths) < 2 {
		return nil
	}
	channels, err := detect.ValidateContinuous(paths)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d folders continue the same %d channels\n", len(paths), len(channels))
	return err
}
