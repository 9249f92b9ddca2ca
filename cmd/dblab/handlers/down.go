package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/dblab/internal/provisioning"
)

// Down tears the cluster down, removing resources in dependency order. With
// dryRun set it only reports what would be removed and leaves the state file
// untouched.
func Down(ctx context.Context, configPath string, dryRun bool) error {
	cfg, err := loadClusterConfig(configPath)
	if err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	store := newStateStore(stateDir)

	awsCfg, err := newSession(ctx, settings)
	if err != nil {
		return err
	}

	pCtx := provisioning.NewContext(ctx, cfg, settings, store)
	teardown := newTeardown(newEC2(awsCfg), newEMR(awsCfg), pCtx.Timeouts)

	if dryRun {
		teardown.DryRun = true
		_, err := teardown.TeardownByName(ctx, cfg.Name)
		return err
	}

	phase := newDestroyPhase(teardown)
	if err := provisioning.RunPhases(pCtx, []provisioning.Phase{phase}); err != nil {
		return fmt.Errorf("down failed: %w", err)
	}
	return nil
}
