package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/glizzus/encore/internal/config"
	"github.com/glizzus/encore/internal/datalayer"
	"github.com/glizzus/encore/internal/repository"
	"github.com/glizzus/encore/internal/schedule"
	"github.com/glizzus/encore/internal/scratch"
	"github.com/glizzus/encore/internal/transcode"
	"github.com/urfave/cli/v2"
)

var (
	okColor   = color.New(color.FgHiGreen)
	warnColor = color.New(color.FgHiYellow)
	failColor = color.New(color.FgHiRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

func outcomeColor(o transcode.Outcome) *color.Color {
	switch o {
	case transcode.OutcomeUnchanged, transcode.OutcomeFit:
		return okColor
	case transcode.OutcomeDegraded:
		return warnColor
	default:
		return failColor
	}
}

func size(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

func openPipeline(c *cli.Context, recorder transcode.JobRecorder) (*transcode.Pipeline, error) {
	transcodeCfg, err := config.NewTranscodeConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load transcode config: %w", err)
	}
	scratchCfg, err := config.NewScratchConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load scratch config: %w", err)
	}
	dir, err := scratch.New(scratchCfg.Dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	runner := transcode.NewFFmpegRunner(transcodeCfg)
	pipeline, err := transcode.NewPipeline(runner, dir, transcode.Options{
		Tolerance: transcodeCfg.Tolerance,
		MaxRungs:  c.Int("max-rungs"),
		Recorder:  recorder,
	})
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

func openHistory(c *cli.Context) (*repository.PostgresJobRepository, func(), error) {
	pool, err := datalayer.NewPostgresPoolFromEnv(c.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	return repository.NewPostgresJobRepository(pool), pool.Close, nil
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Compute the video bitrate for a duration and size budget",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "duration", Usage: "Duration in seconds", Required: true},
			&cli.StringFlag{Name: "target", Usage: "Target size, e.g. 8MB or 7MiB", Value: "7MiB"},
			&cli.IntFlag{Name: "audio-kbps", Usage: "Audio bitrate in kbps", Value: 128},
			&cli.Float64Flag{Name: "overhead", Usage: "Share of the budget left for the streams", Value: 0.97},
			&cli.Int64Flag{Name: "min-video", Usage: "Minimum video bitrate in bps", Value: 100_000},
		},
		Action: func(c *cli.Context) error {
			target, err := humanize.ParseBytes(c.String("target"))
			if err != nil {
				return cli.Exit("Invalid target size: "+err.Error(), 1)
			}
			audio := int64(c.Int("audio-kbps")) * 1000
			video, err := transcode.PlanBitrate(c.Float64("duration"), int64(target), audio, c.Float64("overhead"), c.Int64("min-video"))
			if err != nil {
				return cli.Exit(failColor.Sprint(err.Error()), 1)
			}
			fmt.Printf("video %s  audio %s  target %s\n",
				okColor.Sprint(humanize.SI(float64(video), "bps")),
				humanize.SI(float64(audio), "bps"),
				size(int64(target)),
			)
			return nil
		},
	}
}

func ladderCommand() *cli.Command {
	return &cli.Command{
		Name:  "ladder",
		Usage: "Print the default compression ladder",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUNG\tHEIGHT\tFPS\tAUDIO\tMIN VIDEO\tOVERHEAD\tCODECS")
			for i, r := range transcode.DefaultLadder() {
				height, fps := "source", "source"
				if r.MaxHeight > 0 {
					height = fmt.Sprintf("%dp", r.MaxHeight)
				}
				if r.MaxFPS > 0 {
					fps = fmt.Sprint(r.MaxFPS)
				}
				var codecs []string
				for _, pair := range r.Codecs {
					codecs = append(codecs, pair.String())
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%dk\t%s\t%.2f\t%v\n",
					i, height, fps, r.AudioBitrateKbps, humanize.SI(float64(r.MinVideoBitrate), "bps"), r.Overhead, codecs)
			}
			return w.Flush()
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "Show what ffprobe reports for a file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("Please provide a file to probe", 1)
			}
			transcodeCfg, err := config.NewTranscodeConfigFromEnv()
			if err != nil {
				return cli.Exit("Failed to load transcode config: "+err.Error(), 1)
			}
			probe, err := transcode.NewFFmpegRunner(transcodeCfg).Probe(c.Context, path)
			if err != nil {
				return cli.Exit(failColor.Sprint("Failed to probe: "+err.Error()), 1)
			}

			fmt.Printf("format    %s\n", probe.FormatName)
			fmt.Printf("duration  %s\n", time.Duration(probe.Duration*float64(time.Second)).Round(time.Millisecond))
			fmt.Printf("size      %s\n", size(probe.Size))
			if probe.HasVideo {
				fmt.Printf("video     %dx%d\n", probe.Width, probe.Height)
			}
			for _, s := range probe.Streams {
				fmt.Println(dimColor.Sprintf("  #%d %s %s", s.Index, s.CodecType, s.CodecName))
			}
			return nil
		},
	}
}

func compressCommand() *cli.Command {
	return &cli.Command{
		Name:      "compress",
		Usage:     "Run the compression pipeline on a local file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Target size, e.g. 8MB or 7MiB", Value: "7MiB"},
			&cli.IntFlag{Name: "max-rungs", Usage: "Limit the ladder to this many rungs"},
			&cli.BoolFlag{Name: "record", Usage: "Store the job in Postgres"},
		},
		Action: func(c *cli.Context) error {
			input := c.Args().First()
			if input == "" {
				return cli.Exit("Please provide a file to compress", 1)
			}
			target, err := humanize.ParseBytes(c.String("target"))
			if err != nil {
				return cli.Exit("Invalid target size: "+err.Error(), 1)
			}

			var recorder transcode.JobRecorder
			if c.Bool("record") {
				repo, closeRepo, err := openHistory(c)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				defer closeRepo()
				recorder = repo
			}

			pipeline, err := openPipeline(c, recorder)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			result, err := pipeline.Compress(c.Context, input, int64(target))
			if err != nil {
				return cli.Exit(failColor.Sprint(err.Error()), 1)
			}

			for _, a := range result.Job.Attempts {
				status := okColor.Sprint("ok")
				switch {
				case a.Err != "":
					status = failColor.Sprint(a.Err)
				case !a.Success:
					status = warnColor.Sprint("over")
				}
				fmt.Printf("rung %d  %-15s  %s  %s\n", a.Rung, a.Codecs.String(), size(a.ResultSize), status)
			}
			fmt.Printf("%s  %s → %s  %s\n",
				outcomeColor(result.Outcome).Sprint(result.Outcome.String()),
				size(result.Job.OriginalSize),
				size(result.Size),
				result.Path,
			)
			if result.Err != nil {
				fmt.Println(warnColor.Sprint(result.Err.Error()))
			}
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove stale files from the scratch directory",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Remove every file regardless of age"},
			&cli.IntFlag{Name: "next", Usage: "Only print the next N scheduled sweeps"},
		},
		Action: func(c *cli.Context) error {
			scratchCfg, err := config.NewScratchConfigFromEnv()
			if err != nil {
				return cli.Exit("Failed to load scratch config: "+err.Error(), 1)
			}
			if n := c.Int("next"); n > 0 {
				times, err := schedule.NextRunTimes(scratchCfg.SweepCron, n)
				if err != nil {
					return cli.Exit(failColor.Sprint("Invalid SCRATCH_SWEEP_CRON: "+err.Error()), 1)
				}
				for _, t := range times {
					fmt.Printf("%s  %s\n", t.Local().Format(time.DateTime), dimColor.Sprint(humanize.Time(t)))
				}
				return nil
			}
			dir, err := scratch.New(scratchCfg.Dir, nil)
			if err != nil {
				return cli.Exit("Failed to open scratch directory: "+err.Error(), 1)
			}

			var n int
			if c.Bool("all") {
				n, err = dir.Purge()
			} else {
				n, err = dir.Sweep(scratchCfg.MaxAge, time.Now())
			}
			if err != nil {
				return cli.Exit(failColor.Sprint("Failed to sweep: "+err.Error()), 1)
			}
			log.Printf("Removed %d files from %s", n, dir.Root())
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded transcode jobs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			repo, closeRepo, err := openHistory(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer closeRepo()

			jobs, err := repo.List(c.Context, c.Int("limit"))
			if err != nil {
				return cli.Exit("Failed to list jobs: "+err.Error(), 1)
			}
			if len(jobs) == 0 {
				log.Println("No transcode jobs recorded.")
				return nil
			}
			for _, j := range jobs {
				fmt.Printf("%s  %s  %s → %s  %d attempts  %s\n",
					dimColor.Sprint(j.ID),
					humanize.Time(j.StartedAt),
					size(j.OriginalSize),
					size(j.OutputSize),
					j.Attempts,
					j.Outcome,
				)
			}
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:      "attempts",
				Usage:     "Show every attempt of one job",
				ArgsUsage: "<job-id>",
				Action: func(c *cli.Context) error {
					jobID := c.Args().First()
					if jobID == "" {
						return cli.Exit("Please provide a job ID", 1)
					}
					repo, closeRepo, err := openHistory(c)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer closeRepo()

					attempts, err := repo.Attempts(c.Context, jobID)
					if err != nil {
						return cli.Exit("Failed to load attempts: "+err.Error(), 1)
					}
					for _, a := range attempts {
						fmt.Printf("rung %d  %-15s  v=%s a=%s  %s  %s\n",
							a.Rung,
							a.Codecs.String(),
							humanize.SI(float64(a.VideoBitrate), "bps"),
							humanize.SI(float64(a.AudioBitrate), "bps"),
							size(a.ResultSize),
							a.Elapsed.Round(time.Millisecond),
						)
					}
					return nil
				},
			},
		},
	}
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "encore-cli",
		Description: "A development CLI for exercising Encore's transcode pipeline without Discord",
		Commands: []*cli.Command{
			planCommand(),
			ladderCommand(),
			probeCommand(),
			compressCommand(),
			sweepCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
