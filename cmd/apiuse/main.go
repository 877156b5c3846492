package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/apiuse/internal/config"
	"github.com/unkn0wn-root/apiuse/internal/envsvc"
	"github.com/unkn0wn-root/apiuse/internal/history"
	"github.com/unkn0wn-root/apiuse/internal/httpclient"
	"github.com/unkn0wn-root/apiuse/internal/logger"
	"github.com/unkn0wn-root/apiuse/internal/project"
	"github.com/unkn0wn-root/apiuse/internal/runner"
	"github.com/unkn0wn-root/apiuse/internal/store"
	"github.com/unkn0wn-root/apiuse/internal/telemetry"
	"github.com/unkn0wn-root/apiuse/internal/transfer"
	"github.com/unkn0wn-root/apiuse/internal/tree"
)

var (
	version = "dev"
	commit  = "unknown"
)

type app struct {
	log      *zap.Logger
	store    *store.Store
	projects *project.Service
	tree     *tree.Service
	envs     *envsvc.Service
	codec    *transfer.Codec
	runner   *runner.Runner
	history  *history.Service
}

func main() {
	var (
		dataFile    string
		listFlag    bool
		createName  string
		exportID    string
		outPath     string
		importPath  string
		runNodeID   string
		historyID   string
		timeout     time.Duration
		showVersion bool
	)

	flag.StringVar(&dataFile, "data", "", "Path to the database file (overrides settings)")
	flag.BoolVar(&listFlag, "list", false, "List projects")
	flag.StringVar(&createName, "create", "", "Create a project with the given name")
	flag.StringVar(&exportID, "export", "", "Export the given project id as JSON")
	flag.StringVar(&outPath, "out", "", "Destination path for an exported document")
	flag.StringVar(&importPath, "import", "", "Import a project document from the given file")
	flag.StringVar(&runNodeID, "run", "", "Execute the request behind the given node id")
	flag.StringVar(&historyID, "history", "", "Show run history for the given project id")
	flag.DurationVar(&timeout, "timeout", 0, "Request timeout override")
	flag.BoolVar(&showVersion, "version", false, "Show apiuse version")
	flag.Parse()

	if showVersion {
		fmt.Printf("apiuse %s (%s)\n", version, commit)
		return
	}

	// Local overrides, same convention as the APIUSE_* env variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	settings, _, err := config.LoadSettings()
	if err != nil {
		fatal("load settings: %v", err)
	}
	if env := os.Getenv("APIUSE_DATA_FILE"); env != "" {
		settings.DataFile = env
	}
	if dataFile != "" {
		settings.DataFile = dataFile
	}

	log, err := logger.Init(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fatal("init logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	st, err := store.Open(settings.DataFile)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer st.Close()

	instr, err := telemetry.New(telemetry.ConfigFromEnv(os.Getenv))
	if err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
		instr = telemetry.Noop()
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = instr.Shutdown(ctx)
	}()

	client := httpclient.NewClient(nil)
	client.SetTelemetry(instr)

	opts := httpclient.Options{
		Timeout:      settings.Timeout(),
		MaxBodyBytes: settings.MaxBodyBytes,
	}
	if timeout > 0 {
		opts.Timeout = timeout
	}

	hist := history.NewService(st, settings.HistoryLimit)
	a := &app{
		log:      log,
		store:    st,
		projects: project.NewService(st),
		tree:     tree.NewService(st),
		envs:     envsvc.NewService(st),
		codec:    transfer.NewCodec(st),
		runner:   runner.New(client, hist, log, opts),
		history:  hist,
	}

	ctx := context.Background()
	switch {
	case listFlag:
		err = a.listProjects(ctx)
	case createName != "":
		err = a.createProject(ctx, createName)
	case exportID != "":
		err = a.exportProject(ctx, exportID, outPath)
	case importPath != "":
		err = a.importProject(ctx, importPath)
	case runNodeID != "":
		err = a.runRequest(ctx, runNodeID)
	case historyID != "":
		err = a.showHistory(ctx, historyID)
	default:
		flag.Usage()
	}
	if err != nil {
		fatal("%v", err)
	}
}

func (a *app) listProjects(ctx context.Context) error {
	projects, err := a.projects.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Printf("%s\t%s\n", p.ID, p.Name)
	}
	return nil
}

func (a *app) createProject(ctx context.Context, name string) error {
	p, err := a.projects.Create(ctx, name, "")
	if err != nil {
		return err
	}
	fmt.Println(p.ID)
	return nil
}

func (a *app) exportProject(ctx context.Context, projectID, outPath string) error {
	data, err := a.codec.Export(ctx, projectID)
	if err != nil {
		return err
	}
	if outPath == "" {
		p, err := a.projects.Get(ctx, projectID)
		if err != nil {
			return err
		}
		outPath = transfer.ExportFileName(p)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.log.Info("project exported", zap.String("project", projectID), zap.String("path", outPath))
	return nil
}

func (a *app) importProject(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import document: %w", err)
	}
	p, err := a.codec.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Println(p.ID)
	a.log.Info("project imported", zap.String("project", p.ID), zap.String("name", p.Name))
	return nil
}

func (a *app) runRequest(ctx context.Context, nodeID string) error {
	def, err := a.projects.RequestByNode(ctx, nodeID)
	if err != nil {
		return err
	}
	resolver, err := a.envs.Resolver(ctx, def.ProjectID)
	if err != nil {
		return err
	}
	settings, err := a.envs.Settings(ctx, def.ProjectID)
	if err != nil {
		return err
	}

	result := <-a.runner.Run(ctx, def, resolver, settings.GlobalHeaders)
	if result.Error != "" {
		fmt.Printf("error: %s (%dms)\n", result.Error, result.DurationMs)
		return nil
	}
	fmt.Printf("HTTP %d (%dms)\n", *result.Status, result.DurationMs)
	fmt.Println(result.Body)
	return nil
}

func (a *app) showHistory(ctx context.Context, projectID string) error {
	entries, err := a.history.List(ctx, projectID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "-"
		if e.Status != nil {
			status = fmt.Sprintf("%d", *e.Status)
		}
		fmt.Printf("%s\t%s %s\t%s\t%dms\n",
			time.UnixMilli(e.ExecutedAt).Format(time.RFC3339), e.Method, e.URL, status, e.DurationMs)
	}
	return nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
