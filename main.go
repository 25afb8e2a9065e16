/*
 * This file is part of the Go Cesium Point Cloud Tiler distribution (https://github.com/mfbonfigli/gocesiumtiler).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/tiler"
	"github.com/ecopia-map/globe_tiler/pkg"
	"github.com/ecopia-map/globe_tiler/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/globe_tiler/tools"
)

const VERSION = "1.0.0"

const logo = `
       _       _                _   _ _
  __ _| | ___ | |__   ___      | |_(_) | ___ _ __
 / _  | |/ _ \| '_ \ / _ \     | __| | |/ _ \ '__|
| (_| | | (_) | |_) |  __/     | |_| | |  __/ |
 \__, |_|\___/|_.__/ \___|      \__|_|_|\___|_|
  __| | A quadtree globe tile streamer written in golang
 |___/  Copyright YYYY
`

func main() {
	log.SetPrefix("[globe_tiler] ")
	log.SetFlags(log.LUTC | log.Ldate | log.Lmicroseconds | log.Lshortfile)
	defer glog.Flush()

	flagsGlobal := tools.ParseFlagsGlobal()
	log.Println(tools.FmtJSONString(flagsGlobal))

	if *flagsGlobal.Version {
		printVersion()
		return
	}
	if *flagsGlobal.Help {
		showHelp()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("Please specify a subcommand [run|load-imagery].")
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case tools.CommandRun:
		mainCommandRun(args)
	case tools.CommandLoadImagery:
		mainCommandLoadImagery(args)
	default:
		log.Fatalf("Unrecognized command [%q]. Command must be one of [run|load-imagery]", cmd)
	}
}

func mainCommandRun(args []string) {
	// Retrieve command line args
	flags := tools.ParseFlagsForCommandRun(args)

	// Prints the command line flag description
	if *flags.Help {
		showHelp()
		return
	}

	if *flags.Version {
		printVersion()
		return
	}

	// set logging and timestamp logging
	if *flags.Silent {
		tools.DisableLogger()
	} else {
		printLogo()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	opts := tilerOptionsFromFlags(&flags.TilerFlags)
	opts.Command = tools.CommandRun
	opts.TilerRunOptions = &tiler.TilerRunOptions{
		TargetLat:     *flags.TargetLat,
		TargetLon:     *flags.TargetLon,
		StartDistance: *flags.StartDistance,
		EndDistance:   *flags.EndDistance,
		Duration:      *flags.Duration,
		Linger:        *flags.Linger,
		Tick:          *flags.Tick,
		StatsInterval: *flags.StatsInterval,
		HTTPAddr:      *flags.HTTPAddr,
		Seed:          *flags.Seed,
	}

	thresholds, err := thresholdsFromFlags(opts, &flags.TilerFlags)
	if err != nil {
		log.Fatal("Error parsing thresholds: ", err)
	}
	opts.Thresholds = thresholds

	// Validate TilerOptions
	if msg, res := validateOptionsForCommandRun(opts); !res {
		log.Fatal("Error parsing input parameters: " + msg)
	}
	log.Println("options", tools.FmtJSONString(opts))

	algorithmManager, err := std_algorithm_manager.NewAlgorithmManager(opts)
	if err != nil {
		log.Fatal("Error while preparing the tiler: ", err)
	}
	defer algorithmManager.Close()

	// Starts the tiler
	defer timeTrack(time.Now(), "run")
	var globeTiler pkg.ITiler = pkg.NewTiler(algorithmManager)
	if err := globeTiler.RunTiler(opts); err != nil {
		log.Fatal("Error while tiling: ", err)
	}
	tools.LogOutput("Run Completed")
}

func tilerOptionsFromFlags(flags *tools.TilerFlags) *tiler.TilerOptions {
	return &tiler.TilerOptions{
		Scheme:              tiler.ParseScheme(*flags.Scheme),
		Radius:              *flags.Radius,
		MaxLevel:            *flags.MaxLevel,
		ElevationRoot:       *flags.ElevationRoot,
		ImageryRoot:         *flags.ImageryRoot,
		ZOffset:             *flags.ZOffset,
		Ellipsoid:           *flags.Ellipsoid,
		PlaceholderSize:     *flags.PlaceholderSize,
		PlaceholderMaxLevel: *flags.PlaceholderMaxLevel,
		ImagerySize:         *flags.ImagerySize,
		CacheDriver:         tiler.ParseCacheDriver(*flags.CacheDriver),
		CacheDSN:            *flags.CacheDSN,
		RebuildCorruptCache: *flags.RebuildCorruptCache,
		Workers:             *flags.Workers,
		ActionBudget:        *flags.ActionBudget,
		ThresholdsFile:      *flags.ThresholdsFile,
	}
}

// The YAML file wins over the per level lists, the lists over the defaults
func thresholdsFromFlags(opts *tiler.TilerOptions, flags *tools.TilerFlags) (*tiler.ThresholdTable, error) {
	if opts.ThresholdsFile != "" {
		return tiler.LoadThresholdTable(opts.ThresholdsFile)
	}
	if *flags.DisplayThresholds != "" || *flags.CreateThresholds != "" {
		return tiler.ThresholdTableFromLists(*flags.CreateThresholds, *flags.DisplayThresholds, *flags.DeleteThresholds, *flags.MinViewThresholds)
	}
	return tiler.DefaultThresholdTable(opts.MaxLevel), nil
}

// Validates the input options provided to the command line tool checking
// that input folders exist and values are in range
func validateOptionsForCommandRun(opts *tiler.TilerOptions) (string, bool) {
	if opts.Scheme == "" {
		return "scheme should be either face or grid", false
	}
	if opts.Radius <= 0 {
		return "radius must be positive", false
	}
	if opts.MaxLevel < 0 {
		return "max-level cannot be negative", false
	}
	if opts.ElevationRoot != "" {
		if _, err := os.Stat(opts.ElevationRoot); os.IsNotExist(err) {
			return "Elevation folder not found", false
		}
	}
	if opts.ImageryRoot != "" {
		if _, err := os.Stat(opts.ImageryRoot); os.IsNotExist(err) {
			return "Imagery folder not found", false
		}
	}
	if opts.CacheDriver == "" {
		return "cache should be one of none, memory, sqlite or postgres", false
	}
	if opts.CacheDriver == tiler.CachePostgres && opts.CacheDSN == "" {
		return "cache-dsn is required by the postgres cache", false
	}
	if opts.ActionBudget <= 0 {
		return "action-budget must be positive", false
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return err.Error(), false
	}

	runOpts := opts.TilerRunOptions
	if runOpts.TargetLat < -90 || runOpts.TargetLat > 90 || runOpts.TargetLon < -180 || runOpts.TargetLon > 180 {
		return "lat/lon out of range", false
	}
	if runOpts.StartDistance < runOpts.EndDistance || runOpts.EndDistance < 0 {
		return "start-distance must be greater than end-distance, both non negative", false
	}

	return "", true
}

func mainCommandLoadImagery(args []string) {
	flags := tools.ParseFlagsForCommandLoadImagery(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Silent {
		tools.DisableLogger()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	log.Println("flags", tools.FmtJSONString(flags))

	// Put args inside a TilerOptions struct
	opts := &tiler.TilerOptions{
		Command:     tools.CommandLoadImagery,
		MaxLevel:    *flags.MaxLevel,
		ImageryRoot: *flags.ImageryRoot,
		TilerLoadImageryOptions: &tiler.TilerLoadImageryOptions{
			Input:       *flags.Input,
			Recursive:   *flags.Recursive,
			Concurrency: *flags.Concurrency,
		},
	}

	// Validate TilerOptions
	if msg, res := validateOptionsForCommandLoadImagery(opts); !res {
		log.Fatal("Error parsing input parameters: " + msg)
	}

	defer timeTrack(time.Now(), "load-imagery")
	paths := std_algorithm_manager.PathResolverFor(opts)
	var loader pkg.ITiler = pkg.NewImageryLoader(tools.NewStandardFileFinder(), paths)
	if err := loader.RunTiler(opts); err != nil {
		log.Fatal("Error while loading imagery: ", err)
	}
	tools.LogOutput("Loading Completed")
}

func validateOptionsForCommandLoadImagery(opts *tiler.TilerOptions) (string, bool) {
	if _, err := os.Stat(opts.TilerLoadImageryOptions.Input); os.IsNotExist(err) {
		return "Input file/folder not found", false
	}
	if opts.ImageryRoot == "" {
		return "Imagery folder not specified", false
	}
	if err := tools.CreateDirectoryIfDoesNotExist(opts.ImageryRoot); err != nil {
		return "Imagery folder cannot be created: " + err.Error(), false
	}

	return "", true
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutput(fmt.Sprintf("%s took %s", name, elapsed))
}

func printLogo() {
	fmt.Println(strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("globe_tiler streams a quadtree of globe tiles around a moving viewpoint, building meshes from elevation and imagery tiles")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Subcommands: run, load-imagery. Use <subcommand> -help for their flags.")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
