package main

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/cityroute/internal/catalog"
	"github.com/jask/cityroute/internal/config"
	"github.com/jask/cityroute/internal/planner"
	"github.com/jask/cityroute/internal/session"
	"github.com/jask/cityroute/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	seeds, err := catalog.LoadSeeds(cfg.Catalog.Dir)
	if err != nil {
		log.Printf("warn: using embedded seeds, load from %s failed: %v", cfg.Catalog.Dir, err)
		seeds = catalog.EmbeddedSeeds()
	}

	client := planner.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)

	if cfg.Catalog.Remote {
		hydrateSeeds(ctx, client, &seeds)
	}

	cat := catalog.New(seeds)
	sess := session.New(client)

	p := tea.NewProgram(tui.New(ctx, cfg, sess, cat), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// hydrateSeeds refreshes seed names from the planning service. Failures leave
// the local tables as they are; labels just fall back to bare ids.
func hydrateSeeds(ctx context.Context, client *planner.Client, seeds *catalog.Seeds) {
	for _, k := range catalog.Kinds {
		names, err := client.Lookup(ctx, k.WireName(), seeds.IDs(k))
		if err != nil {
			log.Printf("warn: lookup %s names: %v", k, err)
			continue
		}
		table := seeds.Table(k)
		for id, name := range names {
			table[id] = name
		}
	}
}
