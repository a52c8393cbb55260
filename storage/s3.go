package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"drug-watch/config"
)

// NewS3Client erstellt einen S3-Client für den konfigurierten S3-kompatiblen
// Endpunkt.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3URL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ObjectStore kapselt die Artefakt-Ablage im S3-Bucket. Raw- und
// Processed-Artefakte werden unter datumspartitionierten Schlüsseln abgelegt,
// damit jeder Tageslauf seine Vorgänger unberührt lässt.
type ObjectStore struct {
	Client *s3.Client
	Bucket string
	Logger *zap.Logger
}

func NewObjectStore(client *s3.Client, bucket string, logger *zap.Logger) *ObjectStore {
	return &ObjectStore{Client: client, Bucket: bucket, Logger: logger}
}

// RawKey liefert den Schlüssel für das Roh-Artefakt einer Quelle und eines Tages.
func RawKey(source string, day time.Time) string {
	return fmt.Sprintf("raw/%s/year=%04d/month=%02d/day=%02d/data.json",
		source, day.Year(), int(day.Month()), day.Day())
}

// ProcessedKey liefert den Schlüssel für ein verarbeitetes Artefakt eines Tages.
func ProcessedKey(day time.Time, artifact string) string {
	return fmt.Sprintf("processed/year=%04d/month=%02d/day=%02d/%s",
		day.Year(), int(day.Month()), day.Day(), artifact)
}

// WriteJSON serialisiert v und legt es unter key ab. Existierende Objekte
// werden überschrieben.
func (o *ObjectStore) WriteJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	o.Logger.Debug("Objekt nach S3 geschrieben", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// ReadJSON lädt das Objekt unter key und deserialisiert es nach out. Ein
// fehlendes Objekt ist kein Fehler; der Aufrufer bekommt found=false.
func (o *ObjectStore) ReadJSON(ctx context.Context, key string, out any) (bool, error) {
	resp, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// WriteCSV legt die Zeilen (inklusive Header) als CSV-Objekt unter key ab.
func (o *ObjectStore) WriteCSV(ctx context.Context, key string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	o.Logger.Debug("CSV nach S3 geschrieben", zap.String("key", key), zap.Int("rows", len(rows)))
	return nil
}

// isNotFound erkennt fehlende Objekte über den typisierten Fehler und die
// Fehlercodes, die S3-kompatible Endpunkte stattdessen liefern.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
