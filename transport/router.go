package transport

import (
	"fmt"

	"github.com/gigapi/gigapi-explorer/config"
	"github.com/gigapi/gigapi-explorer/core"
)

// Router builds the transport for an arch mode.
type Router struct {
	NebulaAddr string
	ProxyURL   string
}

func NewRouter(cfg *config.Explorer) *Router {
	return &Router{NebulaAddr: cfg.NebulaAddr, ProxyURL: cfg.ProxyURL}
}

// Select returns the direct Flight transport for ArchDirect and the JSON
// proxy transport for ArchProxy. Any other mode is an error.
func (r *Router) Select(mode int) (core.Transport, error) {
	switch mode {
	case config.ArchDirect:
		return DialFlight(r.NebulaAddr)
	case config.ArchProxy:
		return NewHTTPClient(r.ProxyURL), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownArch, mode)
}
