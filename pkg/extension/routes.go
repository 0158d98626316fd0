// Package extension lets programs that embed sigil add their own routes to
// the server before it starts.
package extension

import (
	"sync"

	"github.com/karloscodes/cartridge"
)

// RouteRegistrar registers routes on the server.
type RouteRegistrar func(srv *cartridge.Server)

var (
	routesMu sync.Mutex
	routes   []RouteRegistrar
)

// RegisterRoutes adds a registrar to be called after the built-in routes are
// mounted. Registrars run in registration order.
func RegisterRoutes(r RouteRegistrar) {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = append(routes, r)
}

// ApplyRoutes calls all registered route registrars.
func ApplyRoutes(srv *cartridge.Server) {
	routesMu.Lock()
	registered := append([]RouteRegistrar(nil), routes...)
	routesMu.Unlock()

	for _, r := range registered {
		r(srv)
	}
}

// Reset drops every registrar; intended for tests.
func Reset() {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = nil
}
