package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/provisioning/compute"
	"github.com/imamik/dblab/internal/state"
)

// Up creates or grows the cluster described by the configuration file.
//
// The first run creates the state file with a fresh cluster identity and a
// snapshot of the sizing parameters. Every run then reconciles: the network
// is ensured, the machine image resolved, existing instances rediscovered by
// tag, and only the missing role slots created.
func Up(ctx context.Context, configPath string) error {
	cfg, err := loadClusterConfig(configPath)
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store := newStateStore(stateDir)
	if !store.Exists() {
		s := state.New(cfg.Name)
		s.DefaultVersion = cfg.Version
		s.InitConfig = compute.InitConfigFor(cfg)
		if err := store.Save(s); err != nil {
			return err
		}
		log.Printf("Created %s for cluster %s (%s)", store.Path(), s.Name, s.ClusterID)
	}

	awsCfg, err := newSession(ctx, settings)
	if err != nil {
		return err
	}

	pCtx := provisioning.NewContext(ctx, cfg, settings, store)
	phase := newComputePhase(newEC2(awsCfg), pCtx.Timeouts)

	if err := provisioning.RunPhases(pCtx, []provisioning.Phase{phase}); err != nil {
		return fmt.Errorf("up failed: %w", err)
	}
	return nil
}
