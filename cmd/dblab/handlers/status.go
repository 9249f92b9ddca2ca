package handlers

import (
	"fmt"
	"io"
	"time"

	"github.com/imamik/dblab/internal/util/tags"
)

// Status prints the cluster identity, infrastructure status, and host
// inventory from the local state file. It is purely local; no provider calls.
func Status(w io.Writer) error {
	store := newStateStore(stateDir)
	cluster, err := store.Load()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Cluster:  %s\n", cluster.Name)
	fmt.Fprintf(w, "ID:       %s\n", cluster.ClusterID)
	fmt.Fprintf(w, "Status:   %s\n", cluster.InfrastructureStatus)
	fmt.Fprintf(w, "Created:  %s\n", cluster.CreatedAt.Format(time.RFC3339))
	if cluster.DefaultVersion != "" {
		fmt.Fprintf(w, "Version:  %s\n", cluster.DefaultVersion)
	}

	for _, role := range tags.Roles {
		hosts := cluster.Hosts[role]
		if len(hosts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d):\n", role, len(hosts))
		for _, h := range hosts {
			line := fmt.Sprintf("  %-14s public %-15s private %-15s %s",
				h.Alias, h.PublicIP, h.PrivateIP, h.AvailabilityZone)
			if v := cluster.VersionFor(h.Alias); v != "" && v != cluster.DefaultVersion {
				line += fmt.Sprintf("  (version %s)", v)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
