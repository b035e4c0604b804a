// Package s3driver implements driver.Driver against any S3-compatible
// object store via github.com/aws/aws-sdk-go, the teacher's own direct
// dependency.
package s3driver

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/zaharov-labs/stackhub/apierr"
	"github.com/zaharov-labs/stackhub/driver"
)

// Config configures the S3 driver.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string // non-empty for S3-compatible stores (MinIO, etc.)
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	ReadURLPrefix  string
	PageSize       int
}

// Driver talks to a single S3 bucket.
type Driver struct {
	cfg      Config
	svc      *s3.S3
	uploader *s3manager.Uploader
}

var _ driver.Driver = (*Driver)(nil)

func New(cfg Config) (*Driver, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(cfg.ForcePathStyle)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, apierr.NewDriverError("s3.NewSession", err)
	}
	return &Driver{
		cfg:      cfg,
		svc:      s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (d *Driver) EnsureInitialized(ctx context.Context) error {
	_, err := d.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.cfg.Bucket)})
	if err != nil {
		return apierr.NewDriverError("s3.HeadBucket", err)
	}
	return nil
}

func (d *Driver) Dispose(context.Context) error { return nil }

func (d *Driver) GetReadURLPrefix() string {
	if d.cfg.ReadURLPrefix != "" {
		return strings.TrimRight(d.cfg.ReadURLPrefix, "/")
	}
	if d.cfg.Endpoint != "" {
		return strings.TrimRight(d.cfg.Endpoint, "/") + "/" + d.cfg.Bucket
	}
	return "https://" + d.cfg.Bucket + ".s3." + d.cfg.Region + ".amazonaws.com"
}

func objKey(storageTopLevel, p string) string {
	return strings.TrimLeft(storageTopLevel+"/"+p, "/")
}

func (d *Driver) PerformWrite(ctx context.Context, in driver.WriteInput) (string, error) {
	key := objKey(in.StorageTopLevel, in.Path)
	input := &s3manager.UploadInput{
		Bucket:      aws.String(d.cfg.Bucket),
		Key:         aws.String(key),
		Body:        in.Stream,
		ContentType: aws.String(in.ContentType),
	}
	if _, err := d.uploader.UploadWithContext(ctx, input); err != nil {
		return "", apierr.NewDriverError("s3.Upload", err)
	}
	return d.GetReadURLPrefix() + "/" + key, nil
}

func (d *Driver) PerformDelete(ctx context.Context, storageTopLevel, p string) error {
	key := objKey(storageTopLevel, p)
	if _, err := d.headObject(ctx, key); err != nil {
		return err
	}
	_, err := d.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apierr.NewDriverError("s3.DeleteObject", err)
	}
	return nil
}

func (d *Driver) PerformRename(ctx context.Context, storageTopLevel, p, newPath string) error {
	srcKey := objKey(storageTopLevel, p)
	dstKey := objKey(storageTopLevel, newPath)
	if _, err := d.headObject(ctx, srcKey); err != nil {
		return err
	}
	copySource := d.cfg.Bucket + "/" + srcKey
	if _, err := d.svc.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(d.cfg.Bucket),
		CopySource: aws.String(copySource),
		Key:        aws.String(dstKey),
	}); err != nil {
		return apierr.NewDriverError("s3.CopyObject", err)
	}
	_, err := d.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return apierr.NewDriverError("s3.DeleteObject", err)
	}
	return nil
}

func (d *Driver) headObject(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := d.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return nil, &apierr.DoesNotExistError{Path: key}
		}
		return nil, apierr.NewDriverError("s3.HeadObject", err)
	}
	return out, nil
}

func (d *Driver) PerformRead(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	key := objKey(storageTopLevel, p)
	out, err := d.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("s3.GetObject", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   aws.StringValue(out.ContentType),
		ContentLength: aws.Int64Value(out.ContentLength),
		ETag:          strings.Trim(aws.StringValue(out.ETag), `"`),
		LastModified:  aws.TimeValue(out.LastModified),
		ReadStream:    out.Body,
	}, nil
}

func (d *Driver) PerformStat(ctx context.Context, storageTopLevel, p string) (driver.FileInfo, error) {
	key := objKey(storageTopLevel, p)
	out, err := d.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return driver.FileInfo{Exists: false}, nil
		}
		return driver.FileInfo{}, apierr.NewDriverError("s3.HeadObject", err)
	}
	return driver.FileInfo{
		Exists:        true,
		ContentType:   aws.StringValue(out.ContentType),
		ContentLength: aws.Int64Value(out.ContentLength),
		ETag:          strings.Trim(aws.StringValue(out.ETag), `"`),
		LastModified:  aws.TimeValue(out.LastModified),
	}, nil
}

func (d *Driver) ListFiles(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, false)
}

func (d *Driver) ListFilesStat(ctx context.Context, pathPrefix string, page *string) (driver.ListPage, error) {
	return d.list(ctx, pathPrefix, page, true)
}

func (d *Driver) list(ctx context.Context, pathPrefix string, page *string, withStat bool) (driver.ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(d.cfg.Bucket),
		Prefix:  aws.String(pathPrefix),
		MaxKeys: aws.Int64(int64(d.cfg.PageSize)),
	}
	if page != nil {
		input.ContinuationToken = aws.String(*page)
	}
	out, err := d.svc.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return driver.ListPage{}, apierr.NewDriverError("s3.ListObjectsV2", err)
	}
	entries := make([]driver.Entry, 0, len(out.Contents))
	for _, obj := range out.Contents {
		e := driver.Entry{Name: strings.TrimPrefix(aws.StringValue(obj.Key), pathPrefix)}
		if withStat {
			e.Size = aws.Int64Value(obj.Size)
			e.LastModified = aws.TimeValue(obj.LastModified)
			e.ETag = strings.Trim(aws.StringValue(obj.ETag), `"`)
		}
		entries = append(entries, e)
	}
	var next *string
	if aws.BoolValue(out.IsTruncated) && out.NextContinuationToken != nil {
		next = out.NextContinuationToken
	}
	return driver.ListPage{Entries: entries, Page: next}, nil
}
