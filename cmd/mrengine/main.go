package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/jocic-m/mrengine/engine"
	"github.com/jocic-m/mrengine/internal/shared/config"
	"github.com/jocic-m/mrengine/internal/shared/logging"
	"github.com/jocic-m/mrengine/internal/shared/textio"
	"github.com/jocic-m/mrengine/pkg/jobs"
	"github.com/jocic-m/mrengine/pkg/mr"

	_ "github.com/jocic-m/mrengine/examples/grep"
	_ "github.com/jocic-m/mrengine/examples/meanvar"
	_ "github.com/jocic-m/mrengine/examples/wordcount"
)

func main() {
	var (
		input      = flag.String("input", "", "input files glob pattern")
		output     = flag.String("output", "", "output directory")
		jobName    = flag.String("job", "", "job to run (e.g., wordcount, grep, meanvar)")
		reducers   = flag.Int("reducers", 0, "number of reducers (overrides config)")
		configPath = flag.String("config", "", "path to engine config file")
	)
	flag.Parse()

	if *input == "" {
		log.Fatal("Input pattern must be specified using the -input flag")
	}
	if *output == "" {
		log.Fatal("Output directory must be specified using the -output flag")
	}

	job, err := jobs.Get(*jobName)
	if err != nil {
		log.Fatalf("Unknown job: '%s'. Available jobs: %v", *jobName, jobs.List())
	}

	cfg, err := config.LoadEngine(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *reducers > 0 {
		cfg.Job.NumReducers = *reducers
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level))

	records, err := textio.ReadRecordsGlob(*input)
	if err != nil {
		logger.Fatal("Failed to read input", "pattern", *input, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := engine.New(engine.Config{
		NumWorkers:   cfg.Workers.Count,
		NumReducers:  cfg.Job.NumReducers,
		MaxAttempts:  cfg.Job.MaxAttempts,
		TaskTimeout:  cfg.Job.TaskTimeout,
		TickInterval: cfg.Workers.TickInterval,
	}, logger)

	logger.Info(
		"Starting job",
		"job", *jobName,
		"input", *input,
		"output", *output,
		"num_records", len(records),
		"num_reducers", cfg.Job.NumReducers,
	)

	handle, err := e.Submit(ctx, engine.JobSpec{
		Name:    *jobName,
		Map:     job.Map,
		Reduce:  job.Reduce,
		Records: records,
	})
	if err != nil {
		logger.Fatal("Failed to submit job", "error", err)
	}

	results, err := handle.Await(ctx)
	if err != nil {
		logger.Fatal("Job failed", "job_id", handle.JobID.String(), "error", err)
	}

	partitioned := make(map[int][]mr.KeyValue)
	for _, kv := range results {
		part := mr.PartitionFor(kv.Key, cfg.Job.NumReducers)
		partitioned[part] = append(partitioned[part], kv)
	}
	if err := textio.WritePartitions(*output, partitioned); err != nil {
		logger.Fatal("Failed to write output", "dir", *output, "error", err)
	}

	logger.Info("Job completed", "job_id", handle.JobID.String(), "num_output_keys", len(results))
}
