// Package issuer hands out upload destinations for a request by presigning
// S3 object URLs. It stands in for the backend in development setups that
// talk to MinIO or S3 directly.
package issuer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/common"
)

const (
	defaultExpires = 15 * time.Minute
	// SigV4 presigned URLs are valid for at most a week.
	maxReadExpires = 7 * 24 * time.Hour
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	// PublicBaseURL, when set, makes read URLs plain "<base>/<key>" links
	// instead of presigned GETs.
	PublicBaseURL string
	// Expires bounds the presigned PUTs. Presigned GETs live for the
	// request's expiration hours.
	Expires time.Duration
}

type S3Issuer struct {
	cfg     Config
	presign *s3.PresignClient
}

func NewS3Issuer(ctx context.Context, cfg Config) (*S3Issuer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("issuer: bucket is required")
	}
	if cfg.Expires <= 0 {
		cfg.Expires = defaultExpires
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			// MinIO serves buckets by path
			o.UsePathStyle = true
		}
	})

	return &S3Issuer{cfg: cfg, presign: newS3PresignClient(client)}, nil
}

// Issue presigns a PUT for every variant the request produces.
func (i *S3Issuer) Issue(ctx context.Context, req *models.UploadRequest) (models.Manifest, error) {
	variants := models.RequiredVariants(req.Kind(), req.NoCuts)
	m := make(models.Manifest, len(variants))

	for _, v := range variants {
		key := Key(req, v)

		put, err := presignPutObject(i.presign, ctx, &s3.PutObjectInput{
			Bucket: aws.String(i.cfg.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(i.cfg.Expires))
		if err != nil {
			return nil, fmt.Errorf("presign put %s: %w", key, err)
		}

		read, err := i.readURL(ctx, key, readExpires(req))
		if err != nil {
			return nil, err
		}

		m[v] = models.Destination{WriteURL: put.URL, ReadURL: read}
	}

	return m, nil
}

func readExpires(req *models.UploadRequest) time.Duration {
	hours := req.ExpirationHours
	if hours <= 0 {
		hours = common.DefaultExpirationHours
	}
	return min(time.Duration(hours*float64(time.Hour)), maxReadExpires)
}

func (i *S3Issuer) readURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if i.cfg.PublicBaseURL != "" {
		return strings.TrimRight(i.cfg.PublicBaseURL, "/") + "/" + key, nil
	}

	get, err := presignGetObject(i.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return get.URL, nil
}

// Key is the object key of one variant: "<dir>/<variant>-<file name>".
// Stills cut from a video get a .png extension.
func Key(req *models.UploadRequest, v models.Variant) string {
	name := req.FileName()
	if req.Kind() == models.KindVideo && v != models.VariantOriginal {
		name = strings.TrimSuffix(name, path.Ext(name)) + ".png"
	}
	name = string(v) + "-" + name

	dir := path.Dir(req.FilePath)
	if req.FilePath == "" || dir == "." || dir == "/" {
		return name
	}
	return strings.TrimPrefix(dir, "/") + "/" + name
}
