package compute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/platform/aws"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	"github.com/imamik/dblab/internal/util/tags"
)

const phase = "Compute"

// NetworkService is the network surface the provisioner needs.
type NetworkService interface {
	EnsureNetwork(ctx context.Context, opts aws.NetworkOpts) (*aws.Network, error)
}

// ImageService resolves the machine image to boot.
type ImageService interface {
	Resolve(ctx context.Context, q aws.ImageQuery) (*aws.ResolvedImage, error)
}

// InstanceService is the instance surface the provisioner needs.
type InstanceService interface {
	CreateInstances(ctx context.Context, opts aws.InstanceCreateOpts) ([]aws.CreatedInstance, error)
	WaitForInstancesRunning(ctx context.Context, ids []string, timeout time.Duration) error
	WaitForInstancesStatusOk(ctx context.Context, ids []string, timeout time.Duration) error
	FindInstancesByClusterID(ctx context.Context, clusterID string) (map[string][]aws.DiscoveredInstance, error)
}

// Provisioner reconciles network and instances for one cluster.
type Provisioner struct {
	network   NetworkService
	images    ImageService
	instances InstanceService
}

// NewProvisioner creates a compute provisioner over the given services.
func NewProvisioner(network NetworkService, images ImageService, instances InstanceService) *Provisioner {
	return &Provisioner{network: network, images: images, instances: instances}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "compute"
}

// Provision brings the cluster to its configured size. Re-running against a
// healthy cluster creates nothing; against a partially built one it fills in
// only the missing slots, continuing aliases and subnet placement where the
// previous run stopped.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	cluster, err := ctx.Store.Load()
	if err != nil {
		return err
	}
	cfg := ctx.Config

	network, err := p.network.EnsureNetwork(ctx, aws.NetworkOpts{
		Name:              cfg.Name,
		ClusterID:         cluster.ClusterID,
		CIDR:              cfg.CIDR,
		AvailabilityZones: cfg.AvailabilityZones,
		ExtraTags:         cfg.Tags,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure cluster network: %w", err)
	}

	image, err := p.images.Resolve(ctx, aws.ImageQuery{
		ImageID: ctx.Settings.ImageID,
		Pattern: ctx.Settings.ImagePattern,
		Arch:    cfg.Arch,
	})
	if err != nil {
		return err
	}
	ctx.Observer.Printf("[%s] Using image %s (%s, %s)", phase, image.ImageID, image.Name, image.Architecture)

	existing, err := p.instances.FindInstancesByClusterID(ctx, cluster.ClusterID)
	if err != nil {
		return err
	}

	var newIDs []string
	roleConfigs := cfg.RoleConfigs()
	for _, role := range tags.Roles {
		roleCfg := roleConfigs[role]
		have := len(existing[role])
		missing := roleCfg.Count - have
		if missing <= 0 {
			if roleCfg.Count > 0 {
				ctx.Observer.Printf("[%s] %s: %d/%d instances already running", phase, role, have, roleCfg.Count)
			}
			continue
		}

		ctx.Observer.Printf("[%s] %s: creating %d instances (%d exist)", phase, role, missing, have)
		created, err := p.instances.CreateInstances(ctx, aws.InstanceCreateOpts{
			ImageID:         image.ImageID,
			InstanceType:    roleCfg.InstanceType,
			Count:           missing,
			StartIndex:      have,
			SubnetIDs:       network.SubnetIDs,
			SecurityGroupID: network.SecurityGroupID,
			KeyName:         ctx.Settings.KeyName,
			ClusterName:     cfg.Name,
			ClusterID:       cluster.ClusterID,
			Role:            role,
			ExtraTags:       cfg.Tags,
			Storage:         storageOpts(roleCfg.Storage),
		})
		if err != nil {
			return err
		}
		for _, c := range created {
			newIDs = append(newIDs, c.InstanceID)
		}
	}

	if len(newIDs) > 0 {
		ctx.Observer.Printf("[%s] Waiting for %d new instances to run...", phase, len(newIDs))
		if err := p.instances.WaitForInstancesRunning(ctx, newIDs, ctx.Timeouts.InstanceRunning); err != nil {
			return err
		}
		ctx.Observer.Printf("[%s] Waiting for status checks...", phase)
		if err := p.instances.WaitForInstancesStatusOk(ctx, newIDs, ctx.Timeouts.InstanceStatusOk); err != nil {
			return err
		}
	}

	// Re-discover the whole fleet so the recorded inventory reflects reality,
	// not the union of past writes.
	fleet, err := p.instances.FindInstancesByClusterID(ctx, cluster.ClusterID)
	if err != nil {
		return err
	}
	if err := ctx.Store.UpdateHosts(hostsFromFleet(fleet)); err != nil {
		return err
	}
	if err := ctx.Store.MarkInfrastructureUp(); err != nil {
		return err
	}

	total := 0
	for _, group := range fleet {
		total += len(group)
	}
	ctx.Observer.Printf("[%s] Cluster %s up with %d instances", phase, cfg.Name, total)
	return nil
}

// hostsFromFleet converts discovered instances into the persisted inventory,
// ordered by alias index within each role.
func hostsFromFleet(fleet map[string][]aws.DiscoveredInstance) map[string][]state.Host {
	hosts := make(map[string][]state.Host, len(fleet))
	for role, group := range fleet {
		sorted := make([]aws.DiscoveredInstance, len(group))
		copy(sorted, group)
		sort.Slice(sorted, func(i, j int) bool {
			a, b := sorted[i].Alias, sorted[j].Alias
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return a < b
		})

		list := make([]state.Host, 0, len(sorted))
		for _, inst := range sorted {
			list = append(list, state.Host{
				PublicIP:         inst.PublicIP,
				PrivateIP:        inst.PrivateIP,
				Alias:            inst.Alias,
				AvailabilityZone: inst.AvailabilityZone,
			})
		}
		hosts[role] = list
	}
	return hosts
}

func storageOpts(sc *config.StorageConfig) *aws.StorageOpts {
	if sc == nil {
		return nil
	}
	return &aws.StorageOpts{
		VolumeType: sc.VolumeType,
		SizeGB:     sc.SizeGB,
		IOPS:       sc.IOPS,
		Throughput: sc.Throughput,
	}
}

// InitConfigFor snapshots the sizing parameters of a cluster definition for
// the persisted state document.
func InitConfigFor(cfg *config.ClusterConfig) *state.InitConfig {
	init := &state.InitConfig{
		Counts:            make(map[string]int),
		InstanceTypes:     make(map[string]string),
		AvailabilityZones: cfg.AvailabilityZones,
		Tags:              cfg.Tags,
	}
	for role, roleCfg := range cfg.RoleConfigs() {
		if roleCfg.Count == 0 {
			continue
		}
		init.Counts[role] = roleCfg.Count
		init.InstanceTypes[role] = roleCfg.InstanceType
		if roleCfg.Storage != nil {
			if init.Storage == nil {
				init.Storage = make(map[string]*state.StorageSnapshot)
			}
			init.Storage[role] = &state.StorageSnapshot{
				VolumeType: roleCfg.Storage.VolumeType,
				SizeGB:     roleCfg.Storage.SizeGB,
				IOPS:       roleCfg.Storage.IOPS,
				Throughput: roleCfg.Storage.Throughput,
			}
		}
	}
	return init
}
