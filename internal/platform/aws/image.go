package aws

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/util/retry"
)

// NoAMIFoundError means no machine image matched the requested ID or pattern.
type NoAMIFoundError struct {
	ImageID string
	Pattern string
	Arch    string
}

func (e *NoAMIFoundError) Error() string {
	if e.ImageID != "" {
		return fmt.Sprintf("AMI %s not found in this account/region; "+
			"build one with `dblab build-image` or point DBLAB_IMAGE_ID at an existing image", e.ImageID)
	}
	return fmt.Sprintf("no AMI matching %q for architecture %s; "+
		"build one with `dblab build-image --arch %s` or override the pattern with DBLAB_IMAGE_PATTERN",
		e.Pattern, e.Arch, e.Arch)
}

// ArchitectureMismatchError means the resolved image cannot boot on the
// requested instance architecture. Catching this before RunInstances is the
// whole point of validation; unwinding a booted mismatch is far more
// expensive.
type ArchitectureMismatchError struct {
	ImageID string
	Want    string
	Got     string
}

func (e *ArchitectureMismatchError) Error() string {
	return fmt.Sprintf("AMI %s is built for %s but %s was requested; "+
		"pick a matching image or change the cluster arch", e.ImageID, e.Got, e.Want)
}

// ServiceError wraps an unclassified provider failure during image lookup.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("AWS error during %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// ResolvedImage is a validated machine image ready to boot.
type ResolvedImage struct {
	ImageID      string
	Name         string
	Architecture string
	CreationDate time.Time
}

// ImageQuery selects the image to resolve. ImageID pins an exact image;
// otherwise Pattern searches private images, with any %s verb substituted by
// Arch.
type ImageQuery struct {
	ImageID string
	Pattern string
	Arch    string
}

// ImageService resolves and validates the machine image used to boot new
// instances.
type ImageService struct {
	api      EC2API
	timeouts *config.Timeouts
}

// NewImageService creates an image service over the given EC2 client.
func NewImageService(api EC2API, t *config.Timeouts) *ImageService {
	return &ImageService{api: api, timeouts: t}
}

// Resolve validates an explicit image ID or searches by pattern, guaranteeing
// the result matches the requested architecture before any instance-create
// call is attempted.
func (s *ImageService) Resolve(ctx context.Context, q ImageQuery) (*ResolvedImage, error) {
	if q.ImageID != "" {
		return s.resolveByID(ctx, q)
	}
	return s.resolveByPattern(ctx, q)
}

func (s *ImageService) resolveByID(ctx context.Context, q ImageQuery) (*ResolvedImage, error) {
	images, err := s.describeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{q.ImageID}})
	if err != nil {
		if IsNotFound(err) {
			return nil, &NoAMIFoundError{ImageID: q.ImageID}
		}
		return nil, &ServiceError{Op: "DescribeImages", Err: err}
	}
	if len(images) == 0 {
		return nil, &NoAMIFoundError{ImageID: q.ImageID}
	}

	img := images[0]
	if got := string(img.Architecture); got != q.Arch {
		return nil, &ArchitectureMismatchError{ImageID: q.ImageID, Want: q.Arch, Got: got}
	}
	return toResolved(img), nil
}

func (s *ImageService) resolveByPattern(ctx context.Context, q ImageQuery) (*ResolvedImage, error) {
	// A pattern without the verb is a fixed name glob, used as-is; running it
	// through Sprintf would corrupt the filter with an EXTRA diagnostic.
	pattern := q.Pattern
	if strings.Contains(pattern, "%s") {
		pattern = fmt.Sprintf(pattern, q.Arch)
	}
	images, err := s.describeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{"self"},
		Filters: []types.Filter{
			{Name: aws.String("name"), Values: []string{pattern}},
			{Name: aws.String("state"), Values: []string{"available"}},
		},
	})
	if err != nil {
		return nil, &ServiceError{Op: "DescribeImages", Err: err}
	}

	var candidates []types.Image
	for _, img := range images {
		if string(img.Architecture) == q.Arch {
			candidates = append(candidates, img)
		}
	}
	if len(candidates) == 0 {
		return nil, &NoAMIFoundError{Pattern: pattern, Arch: q.Arch}
	}

	// Most recent creation time wins; identical timestamps fall back to the
	// lexicographically greatest image ID so the choice stays deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		ti, tj := creationTime(candidates[i]), creationTime(candidates[j])
		if ti.Equal(tj) {
			return aws.ToString(candidates[i].ImageId) > aws.ToString(candidates[j].ImageId)
		}
		return ti.After(tj)
	})

	chosen := candidates[0]
	if len(candidates) > 1 {
		log.Printf("[Image] Warning: %d AMIs match %q for %s, using most recent %s (%s)",
			len(candidates), pattern, q.Arch, aws.ToString(chosen.ImageId), aws.ToString(chosen.Name))
	}
	return toResolved(chosen), nil
}

func (s *ImageService) describeImages(ctx context.Context, input *ec2.DescribeImagesInput) ([]types.Image, error) {
	var out *ec2.DescribeImagesOutput
	err := retry.Do(ctx, func() error {
		var callErr error
		out, callErr = s.api.DescribeImages(ctx, input)
		return callErr
	}, retryOptions(s.timeouts)...)
	if err != nil {
		return nil, err
	}
	return out.Images, nil
}

func toResolved(img types.Image) *ResolvedImage {
	return &ResolvedImage{
		ImageID:      aws.ToString(img.ImageId),
		Name:         aws.ToString(img.Name),
		Architecture: string(img.Architecture),
		CreationDate: creationTime(img),
	}
}

func creationTime(img types.Image) time.Time {
	t, err := time.Parse(time.RFC3339, aws.ToString(img.CreationDate))
	if err != nil {
		return time.Time{}
	}
	return t
}
