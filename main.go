package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/muesli/termenv"

	"github.com/df07/go-surface-scatter/pkg/core"
	"github.com/df07/go-surface-scatter/pkg/export"
	"github.com/df07/go-surface-scatter/pkg/scatter"
	"github.com/df07/go-surface-scatter/pkg/scene"
	"github.com/df07/go-surface-scatter/pkg/uvclean"
)

// options holds the parsed command line
type options struct {
	Job       string
	JobsDir   string
	Out       string
	Format    string
	Merge     string
	Container string
	Seed      int64
	SeedSet   bool
	Parallel  bool
	Watch     bool
	CleanUV   string
	List      bool
}

func main() {
	// Parse command line flags
	var opts options
	flag.StringVar(&opts.Job, "job", "meadow", "Built-in job ID, job file name in -jobs, or path to a .toml/.yaml/.json job")
	flag.StringVar(&opts.JobsDir, "jobs", "jobs", "Directory searched for job files")
	flag.StringVar(&opts.Out, "out", "", "Output file (default output/<job>/placements_<timestamp>.<format>)")
	flag.StringVar(&opts.Format, "format", "", "Output format: json, json.zst, glb or gltf (default from -out, else json)")
	flag.StringVar(&opts.Merge, "merge", "", "glTF merge mode: none, all, surface or variant")
	flag.StringVar(&opts.Container, "container", "", "Parent node for unmerged glTF placements")
	seed := flag.Int64("seed", 0, "Override the job's random seed")
	flag.BoolVar(&opts.Parallel, "parallel", false, "Scatter surfaces on a worker pool with per-surface seeds")
	flag.BoolVar(&opts.Watch, "watch", false, "Re-run the job whenever its file changes")
	flag.StringVar(&opts.CleanUV, "clean-uv", "", "Remove empty UV maps from a .gltf/.glb file (writes to -out, or in place)")
	flag.BoolVar(&opts.List, "list", false, "List available jobs and exit")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.SeedSet = true
		}
	})
	opts.Seed = *seed

	// Show help if requested
	if *help {
		fmt.Println("Surface Scatter")
		fmt.Println("Usage: scatter [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Built-in jobs:")
		for _, job := range scene.BuiltinJobs() {
			fmt.Printf("  %-8s - %s\n", job.ID, job.Description)
		}
		return
	}

	logger := core.StdLogger{}
	out := termenv.NewOutput(os.Stdout)

	if opts.List {
		if err := listJobs(os.Stdout, opts.JobsDir, logger); err != nil {
			fmt.Printf("Error listing jobs: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if opts.CleanUV != "" {
		if err := cleanUV(os.Stdout, opts, logger); err != nil {
			fmt.Printf("Error cleaning UV maps: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	job, err := createJob(opts.Job, opts.JobsDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if !opts.Watch {
		if _, err := runJob(ctx, job, opts, logger, out); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if job.FilePath == "" {
		fmt.Printf("Error: -watch needs a job file, %q is built in\n", job.ID)
		os.Exit(1)
	}
	if err := watchJob(ctx, job.FilePath, opts, logger, out); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// createJob resolves a job ID, name or path
func createJob(id, jobsDir string) (*scene.Job, error) {
	if id == "" {
		return nil, fmt.Errorf("no job given")
	}
	return scene.FindJob(id, jobsDir)
}

// createOutputDir returns the per-job output directory, output/<job name>
func createOutputDir(job *scene.Job) string {
	name := strings.TrimPrefix(job.ID, "file:")
	name = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if name == "" || name == "." {
		name = "job"
	}
	return filepath.Join("output", name)
}

// applyOverrides folds command line flags into the job
func applyOverrides(job *scene.Job, opts options) {
	if opts.SeedSet {
		job.Scatter.Seed = opts.Seed
	}
	if opts.Parallel {
		job.Scatter.Parallel = true
	}
	if opts.Merge != "" {
		job.Output.Merge = opts.Merge
	}
	if opts.Container != "" {
		job.Output.Container = opts.Container
	}
}

// outputFormat picks the output format from -format, then the -out extension
func outputFormat(opts options) (string, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		lower := strings.ToLower(opts.Out)
		switch {
		case strings.HasSuffix(lower, ".json.zst"):
			format = "json.zst"
		case strings.HasSuffix(lower, ".glb"):
			format = "glb"
		case strings.HasSuffix(lower, ".gltf"):
			format = "gltf"
		default:
			format = "json"
		}
	}
	switch format {
	case "json", "json.zst", "glb", "gltf":
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// outputPaths returns the placement dump and glTF paths for a run; either may be empty.
// Paths in the job file are used unless -out is given.
func outputPaths(job *scene.Job, opts options, now time.Time) (placements, gltfPath string, err error) {
	format, err := outputFormat(opts)
	if err != nil {
		return "", "", err
	}

	if opts.Out == "" && (job.Output.Placements != "" || job.Output.GLTF != "") {
		return job.Resolve(job.Output.Placements), job.Resolve(job.Output.GLTF), nil
	}

	path := opts.Out
	if path == "" {
		timestamp := now.Format("20060102_150405")
		path = filepath.Join(createOutputDir(job), fmt.Sprintf("placements_%s.%s", timestamp, format))
	}
	if format == "glb" || format == "gltf" {
		return "", path, nil
	}
	return path, "", nil
}

// runJob loads, scatters and writes one job, then prints the report
func runJob(ctx context.Context, job *scene.Job, opts options, logger core.Logger, out *termenv.Output) (*scatter.Result, error) {
	applyOverrides(job, opts)
	if err := job.Validate(); err != nil {
		return nil, err
	}

	placementsPath, gltfPath, err := outputPaths(job, opts, time.Now())
	if err != nil {
		return nil, err
	}
	merge, err := export.ParseMergeMode(job.Output.Merge)
	if err != nil {
		return nil, err
	}

	logger.Printf("Running job %s (%s)...\n", job.Name, job.ID)
	inputs, err := job.Load(logger)
	if err != nil {
		return nil, err
	}

	result, err := scatter.Run(ctx, inputs.Surfaces, inputs.Candidates, job.Scatter, func(p scatter.Progress) error {
		if p.Skipped {
			logger.Printf("Surface %d/%d (%s): skipped, zero area\n", p.SurfaceIndex+1, p.SurfaceCount, p.SurfaceID)
		} else {
			logger.Printf("Surface %d/%d (%s): %d instances\n", p.SurfaceIndex+1, p.SurfaceCount, p.SurfaceID, p.Placed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if placementsPath != "" {
		compress := strings.HasSuffix(strings.ToLower(placementsPath), ".zst")
		if err := writePlacementsFile(placementsPath, result, compress); err != nil {
			return nil, err
		}
		logger.Printf("Placements saved as %s\n", placementsPath)
	}
	if gltfPath != "" {
		gltfOpts := export.DefaultOptions()
		gltfOpts.Merge = merge
		if job.Output.Container != "" {
			gltfOpts.Container = job.Output.Container
		}
		if err := os.MkdirAll(filepath.Dir(gltfPath), 0755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
		if err := export.WriteGLTF(gltfPath, result, inputs.Library, gltfOpts); err != nil {
			return nil, err
		}
		logger.Printf("glTF saved as %s\n", gltfPath)
	}

	printReport(out, result.Report)
	return result, nil
}

func writePlacementsFile(path string, result *scatter.Result, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	if err := export.WritePlacements(file, result, compress); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// printReport writes the report with a bold headline and colored candidate counts
func printReport(out *termenv.Output, report scatter.Report) {
	lines := strings.Split(strings.TrimRight(report.String(), "\n"), "\n")
	for i, line := range lines {
		style := out.String(line)
		switch {
		case i == 0:
			style = style.Bold().Foreground(out.Color("2"))
		case strings.Contains(line, "skipped"):
			style = style.Foreground(out.Color("3"))
		case strings.HasPrefix(line, "  "):
			style = style.Foreground(out.Color("6"))
		}
		fmt.Fprintln(out, style.String())
	}
}

// watchJob runs the job, then re-runs it each time the job file is written.
// The directory is watched because editors often replace files on save.
func watchJob(ctx context.Context, path string, opts options, logger core.Logger, out *termenv.Output) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	rerun := func() {
		job, err := scene.LoadJob(path)
		if err != nil {
			logger.Printf("Error: %v\n", err)
			return
		}
		if _, err := runJob(ctx, job, opts, logger, out); err != nil {
			logger.Printf("Error: %v\n", err)
		}
	}

	rerun()
	logger.Printf("Watching %s for changes (Ctrl+C to stop)\n", path)

	const settle = 200 * time.Millisecond
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isJobChange(event, path) {
				timer = time.After(settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("Watcher error: %v\n", err)
		case <-timer:
			timer = nil
			rerun()
		}
	}
}

// isJobChange reports whether an event rewrote the watched job file
func isJobChange(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// listJobs prints built-in and file jobs grouped by category
func listJobs(w io.Writer, jobsDir string, logger core.Logger) error {
	response, err := scene.ListAllJobs(jobsDir, logger)
	if err != nil {
		return err
	}
	for _, group := range response.Groups {
		fmt.Fprintf(w, "%s:\n", group.Name)
		for _, job := range group.Jobs {
			fmt.Fprintf(w, "  %-24s %s\n", job.ID, job.Description)
		}
	}
	return nil
}

// cleanUV runs the UV map cleanup on a glTF file; the report goes to the logger
func cleanUV(w io.Writer, opts options, logger core.Logger) error {
	target := opts.Out
	if target == "" {
		target = opts.CleanUV
	}
	report, err := uvclean.CleanFile(opts.CleanUV, target, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %d UV maps from %d primitives, saved as %s\n", report.Deleted, report.Processed, target)
	return nil
}
