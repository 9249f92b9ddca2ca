package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ami(id, name, arch, created string) types.Image {
	return types.Image{
		ImageId:      aws.String(id),
		Name:         aws.String(name),
		Architecture: types.ArchitectureValues(arch),
		CreationDate: aws.String(created),
		State:        types.ImageStateAvailable,
	}
}

func TestResolveByID(t *testing.T) {
	t.Run("found and matching", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				assert.Equal(t, []string{"ami-1"}, params.ImageIds)
				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-1", "dblab-x86_64-101", "x86_64", "2026-01-02T03:04:05Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		img, err := svc.Resolve(context.Background(), ImageQuery{ImageID: "ami-1", Arch: "x86_64"})
		require.NoError(t, err)
		assert.Equal(t, "ami-1", img.ImageID)
		assert.Equal(t, "x86_64", img.Architecture)
		assert.Equal(t, 2026, img.CreationDate.Year())
	})

	t.Run("not found", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return nil, apiError("InvalidAMIID.NotFound")
			},
		}
		svc := NewImageService(mock, testTimeouts())

		_, err := svc.Resolve(context.Background(), ImageQuery{ImageID: "ami-missing", Arch: "x86_64"})
		var notFound *NoAMIFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "ami-missing", notFound.ImageID)
	})

	t.Run("architecture mismatch", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-1", "dblab-arm64-40", "arm64", "2026-01-02T03:04:05Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		_, err := svc.Resolve(context.Background(), ImageQuery{ImageID: "ami-1", Arch: "x86_64"})
		var mismatch *ArchitectureMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "x86_64", mismatch.Want)
		assert.Equal(t, "arm64", mismatch.Got)
	})
}

func TestResolveByPattern(t *testing.T) {
	t.Run("substitutes arch and picks most recent", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				assert.Equal(t, []string{"self"}, params.Owners)
				var namePattern string
				for _, f := range params.Filters {
					if aws.ToString(f.Name) == "name" {
						namePattern = f.Values[0]
					}
				}
				assert.Equal(t, "dblab-x86_64-*", namePattern)

				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-old", "dblab-x86_64-100", "x86_64", "2026-01-01T00:00:00Z"),
					ami("ami-new", "dblab-x86_64-101", "x86_64", "2026-02-01T00:00:00Z"),
					ami("ami-mid", "dblab-x86_64-102", "x86_64", "2026-01-15T00:00:00Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		img, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "dblab-%s-*", Arch: "x86_64"})
		require.NoError(t, err)
		assert.Equal(t, "ami-new", img.ImageID)
	})

	t.Run("pattern without verb is a fixed glob", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				var namePattern string
				for _, f := range params.Filters {
					if aws.ToString(f.Name) == "name" {
						namePattern = f.Values[0]
					}
				}
				assert.Equal(t, "golden-image-*", namePattern)

				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-1", "golden-image-7", "x86_64", "2026-01-01T00:00:00Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		img, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "golden-image-*", Arch: "x86_64"})
		require.NoError(t, err)
		assert.Equal(t, "ami-1", img.ImageID)
	})

	t.Run("creation date tie falls to greatest image id", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-0aaa", "dblab-x86_64-100", "x86_64", "2026-02-01T00:00:00Z"),
					ami("ami-0bbb", "dblab-x86_64-101", "x86_64", "2026-02-01T00:00:00Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		img, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "dblab-%s-*", Arch: "x86_64"})
		require.NoError(t, err)
		assert.Equal(t, "ami-0bbb", img.ImageID)
	})

	t.Run("filters out wrong architecture", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{Images: []types.Image{
					ami("ami-arm", "dblab-arm64-50", "arm64", "2026-03-01T00:00:00Z"),
					ami("ami-x86", "dblab-x86_64-50", "x86_64", "2026-01-01T00:00:00Z"),
				}}, nil
			},
		}
		svc := NewImageService(mock, testTimeouts())

		img, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "dblab-%s-*", Arch: "x86_64"})
		require.NoError(t, err)
		assert.Equal(t, "ami-x86", img.ImageID, "a newer image for the wrong arch must not win")
	})

	t.Run("no candidates", func(t *testing.T) {
		svc := NewImageService(&MockEC2{}, testTimeouts())

		_, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "dblab-%s-*", Arch: "arm64"})
		var notFound *NoAMIFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "dblab-arm64-*", notFound.Pattern)
		assert.Equal(t, "arm64", notFound.Arch)
	})

	t.Run("provider failure is wrapped", func(t *testing.T) {
		mock := &MockEC2{
			DescribeImagesFunc: func(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
				return nil, apiError("InternalError")
			},
		}
		svc := NewImageService(mock, testTimeouts())

		_, err := svc.Resolve(context.Background(), ImageQuery{Pattern: "dblab-%s-*", Arch: "x86_64"})
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "DescribeImages", svcErr.Op)
	})
}
