package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// ErrReceiptNotFound is returned by Fetch when no receipt exists for the order
var ErrReceiptNotFound = errors.New("receipt not found")

// Config holds configuration for the receipt bucket
type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

// Enabled reports whether enough configuration is present to archive receipts
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Line is one purchased course on a receipt
type Line struct {
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
}

// Receipt is the archived proof of an enrollment purchase
type Receipt struct {
	OrderID       string    `json:"orderId"`
	PaymentID     string    `json:"paymentId"`
	TransactionID string    `json:"transactionId"`
	UserID        uint      `json:"userId"`
	Email         string    `json:"email"`
	Currency      string    `json:"currency"`
	Total         int64     `json:"total"`
	Lines         []Line    `json:"lines"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// SpacesArchiver stores receipts in an S3-compatible bucket
type SpacesArchiver struct {
	s3Client s3iface.S3API
	bucket   string
}

// NewSpacesArchiver creates a receipt archiver for the configured bucket
func NewSpacesArchiver(config Config) (*SpacesArchiver, error) {
	if !config.Enabled() {
		return nil, fmt.Errorf("receipt storage is not configured")
	}

	awsConfig := &aws.Config{
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(false),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipts session: %w", err)
	}

	return NewArchiver(s3.New(sess), config.Bucket), nil
}

// NewArchiver wraps an existing S3 client
func NewArchiver(client s3iface.S3API, bucket string) *SpacesArchiver {
	return &SpacesArchiver{s3Client: client, bucket: bucket}
}

// Key returns the object key of an order's receipt
func Key(orderID string) string {
	return fmt.Sprintf("receipts/%s.json", orderID)
}

// Archive uploads the receipt as a private JSON object
func (a *SpacesArchiver) Archive(ctx context.Context, receipt Receipt) error {
	if receipt.OrderID == "" {
		return fmt.Errorf("receipt has no order id")
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	_, err = a.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(receipt.OrderID)),
		Body:        bytes.NewReader(body),
		ACL:         aws.String("private"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt: %w", err)
	}
	return nil
}

// Fetch downloads a previously archived receipt
func (a *SpacesArchiver) Fetch(ctx context.Context, orderID string) (*Receipt, error) {
	result, err := a.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(orderID)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to download receipt: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &receipt, nil
}
