// Package catalog resolves application identifiers to display names for
// overlay payload text. It is a read-only collaborator of the expiry
// coordinator; lookups never hard-fail.
package catalog

import (
	"fmt"
	"sync"
)

// App represents a restricted application known to the launcher.
type App struct {
	ID   string // package/bundle identifier (e.g. "com.example.game")
	Name string // user-friendly name (e.g. "Blocky Builder")
}

// Catalog manages registered applications
type Catalog struct {
	apps map[string]*App // app ID -> app
	mu   sync.RWMutex
}

// New creates an empty app catalog
func New() *Catalog {
	return &Catalog{
		apps: make(map[string]*App),
	}
}

// Register adds an app to the catalog
func (c *Catalog) Register(app *App) error {
	if app.ID == "" {
		return fmt.Errorf("app ID cannot be empty")
	}
	if app.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.apps[app.ID]; exists {
		return fmt.Errorf("app %s already registered", app.ID)
	}

	c.apps[app.ID] = app
	return nil
}

// DisplayName resolves an app ID to its display name. An unknown ID
// degrades to the raw identifier, never an error.
func (c *Catalog) DisplayName(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	app, exists := c.apps[id]
	if !exists {
		return id
	}
	return app.Name
}

// List returns all registered apps
func (c *Catalog) List() []*App {
	c.mu.RLock()
	defer c.mu.RUnlock()

	apps := make([]*App, 0, len(c.apps))
	for _, app := range c.apps {
		apps = append(apps, app)
	}

	return apps
}
