package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/afero"

	"github.com/tapcards/tap/adapters/persistence"
	"github.com/tapcards/tap/internal/config"
	"github.com/tapcards/tap/internal/domain/profile"
	"github.com/tapcards/tap/pkg/logger"
)

func main() {
	path := flag.String("file", "profiles.json", "profile collection JSON to import")
	merge := flag.Bool("merge", false, "keep profiles already in the backend that the file does not mention")
	flag.Parse()

	fmt.Println("importing profiles into storage backend...")

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	appLogger := logger.NewZapLogger(cfg.App.Env)
	defer appLogger.Sync()

	data, err := afero.ReadFile(afero.NewOsFs(), *path)
	if err != nil {
		log.Fatalf("cannot read %s: %v", *path, err)
	}
	incoming := profile.Collection{}
	if err := json.Unmarshal(data, &incoming); err != nil {
		log.Fatalf("%s is not a profile collection: %v", *path, err)
	}

	ctx := context.Background()
	store, closeStore, err := persistence.OpenStore(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("cannot open %s backend: %v", cfg.Storage.Driver, err)
	}
	defer closeStore()
	repo := persistence.NewCollectionRepo(store, cfg.Storage.Key, appLogger)

	target := profile.Collection{}
	if *merge {
		existing, err := repo.LoadAll(ctx)
		if err != nil && err != profile.ErrCollectionNotFound {
			log.Fatalf("cannot load existing profiles: %v", err)
		}
		for k, p := range existing {
			target[k] = p
		}
	}

	skipped := 0
	for key, p := range incoming {
		if p == nil {
			skipped++
			continue
		}
		username := profile.NormalizeUsername(p.Username)
		if username == "" {
			username = profile.NormalizeUsername(key)
		}
		p.Username = username
		target[username] = p
	}

	if err := repo.SaveAll(ctx, target); err != nil {
		log.Fatalf("cannot save profiles: %v", err)
	}
	fmt.Printf("imported %d profiles into %s (key %q), skipped %d: %s\n",
		len(incoming)-skipped, cfg.Storage.Driver, cfg.Storage.Key, skipped, strings.Join(target.Usernames(), ", "))
}
