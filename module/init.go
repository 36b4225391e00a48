package module

import (
	"context"
	"net/http"

	"github.com/gigapi/gigapi-config/config"
	explorer "github.com/gigapi/gigapi-explorer/config"
	"github.com/gigapi/gigapi-explorer/core"
	"github.com/gigapi/gigapi-explorer/proxy"
	"github.com/gigapi/gigapi-explorer/transport"
	"github.com/gigapi/gigapi/v2/modules"
)

var server *proxy.Server

func WithNoError(hndl func(w http.ResponseWriter, r *http.Request),
) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		hndl(w, r)
		return nil
	}
}

// Init mounts the explorer API on /explorer in readonly and aio modes.
// The host serves its own UI, so only the api calls are registered.
func Init(api modules.Api) {
	if config.Config.Gigapi.Mode != "readonly" && config.Config.Gigapi.Mode != "aio" {
		return
	}
	cfg, err := explorer.Load("")
	if err != nil {
		panic(err)
	}
	core.SetLevel(cfg.LogLevel)
	tr, err := transport.NewRouter(cfg).Select(explorer.ArchDirect)
	if err != nil {
		panic(err)
	}
	server = &proxy.Server{
		Transport:  tr,
		DisableUI:  true,
		AuthHeader: cfg.AuthHeader,
		Timeout:    cfg.QueryTimeout,
	}
	core.Infof(context.Background(), "explorer api mounted on /explorer, backend %s", cfg.NebulaAddr)
	api.RegisterRoute(&modules.Route{
		Path:    "/explorer",
		Methods: []string{"GET", "OPTIONS"},
		Handler: WithNoError(proxy.Middleware(http.HandlerFunc(server.HandleAPI)).ServeHTTP),
	})
}

func Close() {
	if server != nil {
		server.Close()
	}
}
