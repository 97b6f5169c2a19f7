// goose-tune — дообучение Phi-3 на JSONL примерах Goose и smoke-тест
// дообученной модели.
//
// Использование:
//
//	./goose-tune                      # обучение (облачный GPU, fp16)
//	./goose-tune --local              # обучение на локальном железе (bf16)
//	./goose-tune --export-gguf        # + квантованный GGUF и Modelfile
//	./goose-tune --data-dir s3://goose/training
//	./goose-tune --test               # smoke-тест сохранённой модели
//	./goose-tune --history 10         # последние прогоны
//
// goose.yaml ищется в текущей директории и рядом с бинарником; без него
// используются встроенные дефолты.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/goose-tune/internal/ui"
	"github.com/ilkoid/goose-tune/pkg/app"
	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/events"
	"github.com/ilkoid/goose-tune/pkg/trainer"
	"github.com/ilkoid/goose-tune/pkg/tui"
	"github.com/ilkoid/goose-tune/pkg/utils"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "Path to goose.yaml (default: ./goose.yaml)")
		local       = flag.Bool("local", false, "Train on local hardware (bf16 instead of fp16)")
		exportGGUF  = flag.Bool("export-gguf", false, "Export a quantized GGUF after saving")
		testMode    = flag.Bool("test", false, "Run the smoke test against the saved model")
		dataDir     = flag.String("data-dir", "", "Training data directory or s3://prefix (overrides data.dir)")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		tuiFlag     = flag.Bool("tui", false, "Show an interactive progress view")
		historyN    = flag.Int("history", 0, "Print the last N recorded runs and exit")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("goose-tune version %s\n", Version)
		return 0
	}

	console := ui.NewConsole(os.Stdout)

	cfg, cfgPath, err := config.LoadOrDefault(*configPath)
	if err != nil {
		console.Error(err)
		return 1
	}
	if *debugFlag {
		cfg.App.Debug = true
	}

	if _, err := utils.InitLogger(utils.LoggerOptions{Dir: cfg.App.LogDir, Debug: cfg.App.Debug}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer utils.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	if cfgPath == "" {
		cfgPath = "built-in defaults"
	}
	utils.Info("goose-tune started", "version", Version, "config", cfgPath,
		"test", *testMode, "local", *local, "export_gguf", *exportGGUF)

	components, err := app.Initialize(cfg)
	if err != nil {
		utils.Error("Initialization failed", "error", err)
		console.Error(err)
		return 1
	}
	defer components.Close()

	switch {
	case *historyN > 0:
		runs, err := components.RecentRuns(ctx, *historyN)
		if err != nil {
			console.Error(err)
			return 1
		}
		console.History(runs)
		return 0

	case *testMode:
		console.Banner(Version, "smoke test", "config: "+cfgPath, "artifact: "+cfg.Training.OutputDir)
		var out *app.SmokeOutcome
		err = execute(ctx, *tuiFlag, "goose-tune · smoke test", console, func(ctx context.Context, em events.Emitter) error {
			var err error
			out, err = components.SmokeTest(ctx, em)
			return err
		})
		if out != nil && out.Report != nil {
			console.SmokeSummary(out.Report, out.ReportPath)
		}

	default:
		opts := app.Options{Local: *local, ExportGGUF: *exportGGUF, DataDir: *dataDir}
		console.Banner(Version, "train", bannerLines(cfg, cfgPath, opts)...)
		var out *app.TrainOutcome
		err = execute(ctx, *tuiFlag, "goose-tune · train", console, func(ctx context.Context, em events.Emitter) error {
			var err error
			out, err = components.Train(ctx, opts, em)
			return err
		})
		if out != nil && out.Result != nil {
			console.TrainingSummary(out.Result, out.ReportPath)
		}
	}

	if err != nil {
		utils.Error("Run failed", "error", err)
		console.Error(describe(err, cfg.Data))
		return 1
	}
	return 0
}

// execute запускает work с консольным выводом или под TUI.
func execute(ctx context.Context, useTUI bool, title string, console *ui.Console, work func(context.Context, events.Emitter) error) error {
	if !useTUI {
		return work(ctx, console)
	}
	emitter := events.NewChanEmitter(64)
	return tui.Run(ctx, emitter, func(ctx context.Context) error {
		return work(ctx, emitter)
	}, tui.WithTitle(title))
}

func bannerLines(cfg *config.AppConfig, cfgPath string, opts app.Options) []string {
	data := cfg.Data.Dir
	if opts.DataDir != "" {
		data = opts.DataDir
	}
	precision := trainer.PrecisionFor(opts.Local)
	lines := []string{
		"config:  " + cfgPath,
		"backend: " + cfg.Backend.Kind,
		"model:   " + cfg.Training.BaseModel + " (" + string(precision) + ")",
		"data:    " + data,
		"output:  " + cfg.Training.OutputDir,
	}
	if opts.ExportGGUF {
		lines = append(lines, "gguf:    "+cfg.Training.GGUFOutput+" ("+cfg.Training.QuantizationMethod+")")
	}
	return lines
}

// describe дополняет ошибку подсказкой для оператора.
func describe(err error, data config.DataConfig) error {
	switch {
	case app.IsCancelled(err):
		return errors.New("run interrupted")
	case errors.Is(err, trainer.ErrNoTrainingData):
		return fmt.Errorf("%w\n  hint: put *%s files without %q in the name into the data dir",
			err, data.Suffix, data.ValidationMarker)
	}
	return err
}
