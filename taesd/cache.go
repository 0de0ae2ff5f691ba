// MODUL: cache
// ZWECK: Prozessweiter Cache von VAE-Instanzen pro Modell-Name
// INPUT: Modell-Name, context.Context
// OUTPUT: Gecachte oder frisch geladene VAE-Instanz
// NEBENEFFEKTE: Liest Gewichtsdateien beim ersten Zugriff, Log-Ausgaben
// ABHAENGIGKEITEN: x/sync/singleflight, statedict.go, resolve.go
// HINWEISE: Kein Eviction; fehlgeschlagene Ladevorgaenge werden nicht gecacht

package taesd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache haelt hoechstens eine VAE-Instanz pro Modell-Name.
// Gleichzeitige Erstzugriffe auf denselben Namen teilen sich einen Ladevorgang.
type Cache struct {
	loc        Locator
	construct  Constructor
	extensions []string

	mu        sync.RWMutex
	instances map[string]VAE
	group     singleflight.Group
}

// Option konfiguriert einen Cache.
type Option func(*Cache)

// WithExtensions ersetzt die Suchreihenfolge der Dateiendungen.
func WithExtensions(exts ...string) Option {
	return func(c *Cache) {
		if len(exts) > 0 {
			c.extensions = slices.Clone(exts)
		}
	}
}

// NewCache erstellt einen leeren Cache. construct darf nil sein; Get liefert
// dann ErrBackendNotRegistered.
func NewCache(loc Locator, construct Constructor, opts ...Option) *Cache {
	c := &Cache{
		loc:        loc,
		construct:  construct,
		extensions: slices.Clone(Extensions),
		instances:  make(map[string]VAE),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get gibt die Instanz fuer model zurueck und laedt sie beim ersten Aufruf.
// ctx beendet nur das Warten; ein laufender Ladevorgang wird fertiggestellt.
func (c *Cache) Get(ctx context.Context, model string) (VAE, error) {
	if vae, ok := c.lookup(model); ok {
		return vae, nil
	}

	ch := c.group.DoChan(model, func() (any, error) {
		if vae, ok := c.lookup(model); ok {
			return vae, nil
		}

		vae, err := c.load(model)
		if err != nil {
			slog.Error("failed to load taesd vae", "model", model, "error", err)
			return nil, err
		}

		c.mu.Lock()
		c.instances[model] = vae
		c.mu.Unlock()

		slog.Info("loaded and cached taesd vae", "model", model)
		return vae, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(VAE), nil
	}
}

func (c *Cache) lookup(model string) (VAE, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vae, ok := c.instances[model]
	return vae, ok
}

// load fuehrt Aufloesung, State-Dict-Aufbau, Konstruktion und Validierung aus
func (c *Cache) load(model string) (VAE, error) {
	if c.construct == nil {
		return nil, ErrBackendNotRegistered
	}

	sd, paths, err := LoadStateDict(c.loc, model, c.extensions)
	if err != nil {
		return nil, err
	}

	vae, err := c.build(sd)
	if err != nil {
		return nil, &ConstructionError{Model: model, Paths: paths, Extensions: slices.Clone(c.extensions), Err: err}
	}

	return vae, nil
}

// build ruft Konstruktor und Validierung auf; ein Panic des Backends wird zum Fehler
func (c *Cache) build(sd StateDict) (vae VAE, err error) {
	defer func() {
		if r := recover(); r != nil {
			vae, err = nil, fmt.Errorf("vae backend panicked: %v", r)
		}
	}()

	vae, err = c.construct(sd)
	if err == nil && vae == nil {
		err = errors.New("constructor returned no instance")
	}
	if err == nil {
		err = vae.Validate()
	}
	return vae, err
}

// Loaded gibt die Namen aller gecachten Modelle sortiert zurueck.
func (c *Cache) Loaded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.instances))
}

// IsLoaded prueft ob model bereits im Cache liegt.
func (c *Cache) IsLoaded(model string) bool {
	_, ok := c.lookup(model)
	return ok
}

// Locator gibt den Locator des Caches zurueck.
func (c *Cache) Locator() Locator {
	return c.loc
}

// Extensions gibt die Suchreihenfolge der Dateiendungen zurueck.
func (c *Cache) Extensions() []string {
	return slices.Clone(c.extensions)
}
