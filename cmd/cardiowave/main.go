// Command-line interface to the cardiowave simulator.
// Serves a running simulation over HTTP or steps one headless.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/export"
	"github.com/janelia-flyem/cardiowave/server"
	"github.com/janelia-flyem/cardiowave/storage"

	// snapshot store engines beyond the in-memory one
	_ "github.com/janelia-flyem/cardiowave/storage/badger"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to the TOML configuration.  Defaults are used if not given.
	configFile = flag.String("config", "", "")

	// Address for http communication, overriding the configuration.
	httpAddress = flag.String("http", "", "")

	// Number of logical CPUs to use for the pool kernel.
	useCPU = flag.Int("numcpu", 0, "")

	// Pacing site for "run" as x,y,z in grid units.
	paceSite = flag.String("pace", "", "")

	// Pacing radius for "run".
	paceRadius = flag.Float64("radius", 1.5, "")

	// Bucket reference for exporting the final state of "run".
	exportRef = flag.String("export", "", "")

	// Key of the exported state within the bucket.
	exportKey = flag.String("key", "", "")
)

const helpMessage = `
cardiowave simulates cardiac electrical activity on a sparse voxel domain

Usage: cardiowave [options] <command>

      -config     =string   TOML configuration file.
      -http       =string   Address for HTTP communication.
      -numcpu     =number   Number of logical CPUs for the pool kernel.
      -pace       =x,y,z    Pacing site for "run" in grid units.
      -radius     =number   Pacing radius for "run" (default 1.5).
      -export     =string   Bucket URL receiving the final state of "run", e.g. file:///tmp/out
      -key        =string   Key of the exported state (default state-<step>.arrow).
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	serve
	run <steps>
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		cardio.SetLogMode(cardio.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *useCPU > 0 {
		cardio.NumCPU = *useCPU
	}
	runtime.GOMAXPROCS(cardio.NumCPU)

	if *configFile != "" {
		if err := server.LoadConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	server.SetHTTPAddress(*httpAddress)

	var err error
	args := flag.Args()
	switch args[0] {
	case "about":
		fmt.Printf("cardiowave %s\n", cardio.Version)
		fmt.Printf("Snapshot stores: %s\n", strings.Join(storage.EnginesAvailable(), ", "))
	case "serve":
		err = serve()
	case "run":
		err = run(args[1:])
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cardio.Shutdown()
}

func serve() error {
	s, err := server.Initialize()
	if err != nil {
		return err
	}
	return server.Serve(s)
}

func parseSite(str string) (x, y, z float64, err error) {
	parts := strings.Split(str, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("pacing site must be x,y,z, got %q", str)
	}
	var vals [3]float64
	for i, part := range parts {
		if vals[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
			return 0, 0, 0, fmt.Errorf("bad pacing site %q: %v", str, err)
		}
	}
	return vals[0], vals[1], vals[2], nil
}

// run steps a simulation headless and prints a summary of its final state.
func run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("run needs the number of steps")
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps < 0 {
		return fmt.Errorf("bad number of steps %q", args[0])
	}
	s, err := server.Initialize()
	if err != nil {
		return err
	}
	defer s.Close()
	defer storage.KafkaShutdown()

	if *paceSite != "" {
		x, y, z, err := parseSite(*paceSite)
		if err != nil {
			return err
		}
		paced, err := s.Pace(x, y, z, *paceRadius)
		if err != nil {
			return err
		}
		fmt.Printf("Paced %d cells within %g of (%g, %g, %g)\n", paced, *paceRadius, x, y, z)
	}

	start := time.Now()
	if err := s.Step(steps); err != nil {
		return err
	}
	elapsed := time.Since(start)

	eng := s.Engine()
	states, step, err := eng.ReadStateWithStep()
	if err != nil {
		return err
	}
	var excited int
	var sum, maxU float64
	for _, st := range states {
		sum += st.U
		if st.U > maxU {
			maxU = st.U
		}
		if st.U > eng.Params().Una {
			excited++
		}
	}
	n := len(states)
	fmt.Printf("%s cells, %d steps in %s with %s kernel\n", humanize.Comma(int64(n)), steps, elapsed, eng.Kernel().Name())
	if n > 0 {
		fmt.Printf("Step %d: %d cells excited (%.1f%%), mean U %.4f, max U %.4f\n",
			step, excited, 100*float64(excited)/float64(n), sum/float64(n), maxU)
	}

	if *exportRef != "" {
		key := *exportKey
		if key == "" {
			key = fmt.Sprintf("state-%09d.arrow", step)
		}
		if err := export.ToURL(context.Background(), *exportRef, key, eng.Domain(), step, states); err != nil {
			return err
		}
		fmt.Printf("Exported state to %s/%s\n", strings.TrimSuffix(*exportRef, "/"), key)
	}
	return nil
}
