package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"glampstay/internal/app/policies"
)

const (
	metaVerified  = "Verified"
	metaBookingID = "Booking-Id"
)

// ReceiptStore reads the review outcome the receipt-review process writes as
// user metadata on uploaded receipt objects. The object key is the proofRef.
type ReceiptStore struct {
	bucket string
	client *minio.Client
	logger *slog.Logger
}

// NewReceiptStore configures a client for the receipts bucket.
func NewReceiptStore(endpoint string, useSSL bool, accessKey, secretKey, bucket string, logger *slog.Logger) (*ReceiptStore, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return &ReceiptStore{bucket: bucket, client: minioClient, logger: logger}, nil
}

// Verified reports whether the receipt object exists, belongs to the booking
// and has been marked verified. A missing object is not an error.
func (r *ReceiptStore) Verified(ctx context.Context, bookingID, proofRef string) (bool, error) {
	key := strings.Trim(strings.TrimSpace(proofRef), "/")
	if key == "" {
		return false, nil
	}
	info, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("s3: stat receipt: %w", err)
	}
	if owner := metadata(info, metaBookingID); owner != "" && owner != bookingID {
		if r.logger != nil {
			r.logger.Warn("receipt belongs to another booking", "booking_id", bookingID, "proof_ref", key, "owner", owner)
		}
		return false, nil
	}
	verified, err := strconv.ParseBool(metadata(info, metaVerified))
	if err != nil {
		return false, nil
	}
	return verified, nil
}

// Ping checks that the receipts bucket is reachable.
func (r *ReceiptStore) Ping(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("s3: bucket %q does not exist", r.bucket)
	}
	return nil
}

func metadata(info minio.ObjectInfo, name string) string {
	if v, ok := info.UserMetadata[name]; ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(info.Metadata.Get("X-Amz-Meta-" + name))
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ policies.ProofVerifier = (*ReceiptStore)(nil)
