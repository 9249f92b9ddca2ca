package handlers

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/dblab/internal/config"
)

// CleanAll sweeps every dblab-managed VPC in the region, whether or not a
// local state file exists for it. The shared image-build network is kept
// unless includeBuild is set.
func CleanAll(ctx context.Context, dryRun, includeBuild bool) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	awsCfg, err := newSession(ctx, settings)
	if err != nil {
		return err
	}

	teardown := newTeardown(newEC2(awsCfg), newEMR(awsCfg), config.LoadTimeouts())
	teardown.DryRun = dryRun

	var keep []string
	if !includeBuild {
		keep = append(keep, settings.BuildVPCName)
	}

	results, err := teardown.TeardownAllTagged(ctx, keep...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		log.Printf("No dblab-managed VPCs found in %s", settings.Region)
		return nil
	}

	failed := 0
	for _, r := range results {
		if r.Success() {
			continue
		}
		failed++
		log.Printf("VPC %s (%s) not fully removed: %v", r.VpcID, r.VpcName, r.Err())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d VPCs could not be fully removed; re-run to retry", failed, len(results))
	}

	if !dryRun {
		log.Printf("Removed %d VPCs", len(results))
	}
	return nil
}
