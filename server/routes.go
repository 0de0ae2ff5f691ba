// routes.go - HTTP-Router des TAESD-Servers
//
// Dieses Modul enthaelt:
// - Server: Haelt Cache und Node-Registry
// - GenerateRoutes: Gin-Router mit CORS und Host-Pruefung
// - allowedHostsMiddleware: Blockiert fremde Hosts bei Loopback-Bindung
package server

import (
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/7blacky7/ollama-taesd/envconfig"
	"github.com/7blacky7/ollama-taesd/nodes"
	"github.com/7blacky7/ollama-taesd/taesd"
)

// Server bedient die Node-Discovery und die Encode/Decode-Endpunkte.
type Server struct {
	addr  net.Addr
	cache *taesd.Cache
	nodes *nodes.Registry
}

// NewServer erstellt einen Server ueber cache. addr darf nil sein.
func NewServer(addr net.Addr, cache *taesd.Cache) *Server {
	return &Server{
		addr:  addr,
		cache: cache,
		nodes: nodes.NewRegistry(cache),
	}
}

// isLocalIP prueft ob die IP-Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	for _, tld := range []string{"localhost", "local", "internal"} {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen mit fremdem Host-Header solange
// der Server nur auf Loopback lauscht
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() http.Handler {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "TAESD is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "TAESD is running") })

	// Node-Discovery
	r.GET("/object_info", s.ObjectInfoHandler)
	r.GET("/object_info/:class", s.ObjectInfoHandler)

	// Modelle und Cache
	r.GET("/api/taesd/models", s.ListModelsHandler)
	r.GET("/api/taesd/backends", s.BackendsHandler)
	r.POST("/api/taesd/load", s.LoadHandler)

	// Node-Ausfuehrung
	r.POST("/api/taesd/encode", s.EncodeHandler)
	r.POST("/api/taesd/decode", s.DecodeHandler)

	return r
}
