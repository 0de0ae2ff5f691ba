// config.go - Haupt-Konfigurationsfunktionen fuer den TAESD-Server
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (TAESD_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (TAESD_ORIGINS)
// - Models: Gibt die vae_approx-Verzeichnisse zurueck (TAESD_MODELS)
// - Backend: Gibt den VAE-Backend-Namen zurueck (TAESD_BACKEND)
// - LogLevel: Gibt Log-Level zurueck (TAESD_DEBUG)
//
// Getter und AsMap/Values liegen in config_utils.go
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via TAESD_HOST
// Default: http://127.0.0.1:8189
func Host() *url.URL {
	defaultPort := "8189"

	s := strings.TrimSpace(Var("TAESD_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via TAESD_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("TAESD_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Models gibt die Suchverzeichnisse fuer vae_approx-Dateien zurueck
// Konfigurierbar via TAESD_MODELS (getrennt durch filepath.ListSeparator)
// Default: $HOME/.taesd/models/vae_approx
func Models() []string {
	if s := Var("TAESD_MODELS"); s != "" {
		var dirs []string
		for _, dir := range filepath.SplitList(s) {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, dir)
			}
		}
		if len(dirs) > 0 {
			return dirs
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return []string{filepath.Join(home, ".taesd", "models", "vae_approx")}
}

// Home gibt das Konfigurationsverzeichnis zurueck ($HOME/.taesd)
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taesd")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via TAESD_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("TAESD_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

var (
	// Backend waehlt den registrierten VAE-Konstruktor (leer = einziges Backend)
	Backend = String("TAESD_BACKEND")
	// Preload laedt beim Serverstart das Default-Modell in den Cache
	Preload = Bool("TAESD_PRELOAD")
	// MaxUploadMB begrenzt Multipart-Uploads des Servers
	MaxUploadMB = Uint("TAESD_MAX_UPLOAD_MB", 64)
	// MaxImagePixels begrenzt Breite*Hoehe hochgeladener Bilder vor dem Dekodieren
	MaxImagePixels = Uint("TAESD_MAX_PIXELS", 1<<26)
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
