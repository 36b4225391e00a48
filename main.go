//go:generate go run build_ui.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gigapi/gigapi-config/config"
	"github.com/gigapi/gigapi-explorer/backend"
	explorer "github.com/gigapi/gigapi-explorer/config"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/dispatch"
	"github.com/gigapi/gigapi-explorer/dsl"
	"github.com/gigapi/gigapi-explorer/proxy"
	"github.com/gigapi/gigapi-explorer/render"
	"github.com/gigapi/gigapi-explorer/session"
	"github.com/gigapi/gigapi-explorer/state"
	"github.com/gigapi/gigapi-explorer/transport"
	"github.com/spf13/afero"
)

func main() {
	config.InitConfig("")

	ctx := core.WithDefaultLogger(context.Background(), "main")
	configFlag := flag.String("config", "", "Explorer settings file")
	stateFlag := flag.String("state", "", "Run the query in a state fragment and exit")
	scriptFlag := flag.String("script", "", "Run the query described by a YAML script file and exit")
	archFlag := flag.Int("arch", 0, "Transport override: 1 direct Flight, 2 JSON proxy")
	backendFlag := flag.Bool("backend", false, "Serve local DuckDB tables over Flight")
	svgFlag := flag.String("svg", "", "Write chart results as SVG to this file")
	flag.Parse()

	cfg, err := explorer.Load(*configFlag)
	if err != nil {
		core.Errorf(ctx, "Failed to load settings: %v", err)
		os.Exit(1)
	}
	core.SetLevel(cfg.LogLevel)

	switch {
	case *backendFlag:
		err = runBackend(ctx, cfg)
	case *stateFlag != "" || *scriptFlag != "":
		err = runOnce(ctx, cfg, *stateFlag, *scriptFlag, *archFlag, *svgFlag)
	default:
		err = serveProxy(ctx, cfg)
	}
	if err != nil {
		core.Errorf(ctx, "%v", err)
		os.Exit(1)
	}
}

func runBackend(ctx context.Context, cfg *explorer.Explorer) error {
	path := cfg.DuckDBPath
	if path == "" && config.Config.Gigapi.Root != "" {
		path = filepath.Join(config.Config.Gigapi.Root, "explorer.duckdb")
	}
	db, err := backend.OpenDuckDB(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return backend.StartFlightServer(ctx, config.Config.FlightSqlPort, db)
}

func runOnce(ctx context.Context, cfg *explorer.Explorer, fragment, scriptPath string, arch int, svgPath string) error {
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		st, err := dsl.Eval(string(src))
		if err != nil {
			return err
		}
		if fragment, err = state.Encode(st); err != nil {
			return err
		}
	}

	var renderer dispatch.Renderer = &render.Text{W: os.Stdout}
	if svgPath != "" {
		f, err := os.Create(svgPath)
		if err != nil {
			return err
		}
		defer f.Close()
		renderer = &render.Chart{W: f, Fallback: renderer}
	}

	mode := cfg.ArchMode
	if arch != 0 {
		mode = arch
	}
	scheduler := dispatch.NewScheduler(renderer, nil, dispatch.Viewport{Width: 1024, Height: 480})
	s := session.New(transport.NewRouter(cfg), mode, scheduler, func(msg string) {
		fmt.Fprintln(os.Stderr, msg)
	})
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	_, err := s.Execute(ctx, fragment)
	return err
}

func serveProxy(ctx context.Context, cfg *explorer.Explorer) error {
	tr, err := transport.NewRouter(cfg).Select(explorer.ArchDirect)
	if err != nil {
		return err
	}
	server := &proxy.Server{
		Transport:  tr,
		DisableUI:  config.Config.DisableUI,
		AuthHeader: cfg.AuthHeader,
		Timeout:    cfg.QueryTimeout,
	}
	defer server.Close()

	if !server.DisableUI {
		var ui afero.Fs
		if ui, err = proxy.OpenUI(cfg.UIDir); err != nil {
			core.Warnf(ctx, "UI disabled: %v", err)
			server.DisableUI = true
		}
		server.UIFS = ui
	}

	port := config.Config.Port
	core.Infof(ctx, "Explorer running at http://localhost:%d, backend %s", port, cfg.NebulaAddr)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), server.Handler())
}
