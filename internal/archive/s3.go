package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/internal/analysis"
)

// S3Archiver uploads each report as markdown next to the payload it was
// generated from.
type S3Archiver struct {
	svc    s3iface.S3API
	bucket string
	log    *zap.Logger
}

func NewS3Archiver(svc s3iface.S3API, bucket string, log *zap.Logger) *S3Archiver {
	return &S3Archiver{svc: svc, bucket: bucket, log: log.Named("s3")}
}

func (a *S3Archiver) Name() string {
	return "s3"
}

// ReportKey is the object key of a report's markdown.
func ReportKey(pdbID, slug string) string {
	return fmt.Sprintf("reports/%s/%s.md", pdbID, slug)
}

// PayloadKey is the object key of the payload a report was generated from.
func PayloadKey(pdbID, slug string) string {
	return fmt.Sprintf("reports/%s/%s.json", pdbID, slug)
}

func (a *S3Archiver) Archive(ctx context.Context, report analysis.Report) error {
	// user metadata travels as HTTP headers and must stay US-ASCII
	metadata := map[string]*string{
		"compound-queried": aws.String(url.QueryEscape(report.CompoundQueried)),
		"model":            aws.String(report.Model),
		"slug":             aws.String(report.Slug),
	}

	if err := a.put(ctx, ReportKey(report.PDBID, report.Slug), "text/markdown; charset=utf-8", []byte(report.Text), metadata); err != nil {
		return err
	}
	if err := a.put(ctx, PayloadKey(report.PDBID, report.Slug), "application/json", []byte(report.Payload), metadata); err != nil {
		return err
	}

	a.log.Info("report uploaded", zap.String("bucket", a.bucket), zap.String("key", ReportKey(report.PDBID, report.Slug)))
	return nil
}

func (a *S3Archiver) put(ctx context.Context, key, contentType string, body []byte, metadata map[string]*string) error {
	_, err := a.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
