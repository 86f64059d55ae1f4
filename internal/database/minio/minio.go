package minio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"crop-claim-service/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient wraps the MinIO client with the evidence buckets this service needs
type MinioClient struct {
	client *minio.Client
	config config.MinioConfig
}

var Storage = struct {
	CropEvidence string
}{
	CropEvidence: "crop-evidence",
}

var BucketNames = []string{
	Storage.CropEvidence,
}

// EvidenceObjectKey names a stored scan: <session>/<uuid>.<ext>.
func EvidenceObjectKey(sessionID, extension string) string {
	return fmt.Sprintf("%s/%s.%s", sessionID, uuid.NewString(), strings.TrimPrefix(extension, "."))
}

// endpointFromURL strips the scheme, minio.New wants host:port only.
func endpointFromURL(rawURL string) string {
	endpoint := strings.TrimPrefix(rawURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	endpoint := endpointFromURL(cfg.MinioURL)

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		log.Printf("Invalid value for MinIO secure flag: %v. Defaulting to false.", err)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err = minioClient.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}

	log.Printf("Successfully connected to MinIO at %s", cfg.MinioURL)

	mc := &MinioClient{
		client: minioClient,
		config: cfg,
	}

	for _, bucketName := range BucketNames {
		if err := mc.ensureBucket(ctx, bucketName); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", bucketName, err)
		}
	}

	return mc, nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucketName string) error {
	exists, err := mc.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}

	if !exists {
		err := mc.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{
			Region: mc.config.MinioLocation,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", bucketName, err)
		}
		log.Printf("Created bucket: %s", bucketName)
	}

	return nil
}

func (mc *MinioClient) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := mc.client.PutObject(ctx, bucketName, objectName, reader, int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload bytes to %s in bucket %s: %w", objectName, bucketName, err)
	}

	return nil
}

func (mc *MinioClient) DeleteFile(ctx context.Context, bucketName, objectName string) error {
	err := mc.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file %s from bucket %s: %w", objectName, bucketName, err)
	}
	return nil
}

// EvidenceStore adapts the client to the evidence bucket.
type EvidenceStore struct {
	mc *MinioClient
}

func NewEvidenceStore(mc *MinioClient) *EvidenceStore {
	return &EvidenceStore{mc: mc}
}

func (s *EvidenceStore) Put(ctx context.Context, sessionID string, data []byte, mimeType, extension string) (string, error) {
	key := EvidenceObjectKey(sessionID, extension)
	if err := s.mc.UploadBytes(ctx, Storage.CropEvidence, key, data, mimeType); err != nil {
		return "", err
	}
	return key, nil
}

func (s *EvidenceStore) Delete(ctx context.Context, key string) error {
	return s.mc.DeleteFile(ctx, Storage.CropEvidence, key)
}
