package main

import (
	"fmt"
	"os"

	cyclereport "github.com/TheCacophonyProject/battery-analyzer/internal/cycle-report"
	profilereport "github.com/TheCacophonyProject/battery-analyzer/internal/profile-report"
	rundetect "github.com/TheCacophonyProject/battery-analyzer/internal/run-detect"
	"github.com/TheCacophonyProject/go-utils/logging"
)

var log *logging.Logger

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

var version = "<not set>"

func runMain() error {
	log = logging.NewLogger("info")
	if len(os.Args) < 2 {
		log.Info("Usage: battery-analyzer <cycle|profile|detect> [args]")
		return fmt.Errorf("no subcommand given")
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "cycle":
		err = cyclereport.Run(args, version)
	case "profile":
		err = profilereport.Run(args, version)
	case "detect":
		err = rundetect.Run(args, version)
	case "version":
		fmt.Println(version)
	default:
		err = fmt.Errorf("unknown subcommand: %s", subcommand)
	}

	return err
}
