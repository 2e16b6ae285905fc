package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// EnvelopeMagic prefixes every sealed archive object.
const EnvelopeMagic = "GCM3NCR0"

const (
	saltLen   = 16
	nonceLen  = 12
	tagLen    = 16
	kdfRounds = 100000
	keyLen    = 32
)

// ErrEnvelope is returned for data that is not a valid sealed envelope.
var ErrEnvelope = errors.New("invalid envelope")

// Uploader is the subset of manager.Uploader the archiver needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// BucketHeader is the subset of the S3 client used to check the bucket is reachable.
type BucketHeader interface {
	HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options configures the archive bucket.
type S3Options struct {
	Bucket          string
	Prefix          string
	Password        string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archiver copies produced PDFs to S3, sealing them when a password is configured.
type S3Archiver struct {
	uploader Uploader
	heads    BucketHeader
	bucket   string
	prefix   string
	password string
}

// NewS3Archiver loads the AWS default config chain, with optional static credentials and
// a custom endpoint for S3-compatible stores.
func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	a := NewS3ArchiverWithUploader(manager.NewUploader(cli), opts)
	a.heads = cli
	return a, nil
}

// NewS3ArchiverWithUploader builds an archiver on top of an existing uploader.
func NewS3ArchiverWithUploader(u Uploader, opts S3Options) *S3Archiver {
	return &S3Archiver{
		uploader: u,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		password: opts.Password,
	}
}

// Ping checks the bucket with HeadBucket. Archivers built without a client always pass.
func (a *S3Archiver) Ping(ctx context.Context) error {
	if a.heads == nil {
		return nil
	}
	_, err := a.heads.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}

// Key returns the object key for an entry id.
func (a *S3Archiver) Key(id string) string {
	if a.prefix == "" {
		return id + ".pdf"
	}
	return path.Join(a.prefix, id+".pdf")
}

// Archive uploads the file at pdfPath under the entry id and returns its s3:// url.
func (a *S3Archiver) Archive(ctx context.Context, id, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	contentType := "application/pdf"
	meta := map[string]string{
		"conversion-id": id,
		"created":       time.Now().UTC().Format(time.RFC3339),
	}
	if a.password != "" {
		data, err = SealEnvelope(data, a.password)
		if err != nil {
			return "", err
		}
		contentType = "application/octet-stream"
		meta["encrypted"] = "true"
		meta["encryption-format"] = EnvelopeMagic
	}

	key := a.Key(id)
	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	}); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	url := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	log.Info().Str("conversion_id", id).Str("url", url).Int("size", len(data)).Bool("encrypted", a.password != "").Msg("archived pdf")
	return url, nil
}

// SealEnvelope encrypts data as magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
func SealEnvelope(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(EnvelopeMagic)+saltLen+nonceLen+len(data)+tagLen)
	out = append(out, EnvelopeMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// OpenEnvelope reverses SealEnvelope.
func OpenEnvelope(sealed []byte, password string) ([]byte, error) {
	head := len(EnvelopeMagic) + saltLen + nonceLen
	if len(sealed) < head+tagLen || string(sealed[:len(EnvelopeMagic)]) != EnvelopeMagic {
		return nil, ErrEnvelope
	}
	salt := sealed[len(EnvelopeMagic) : len(EnvelopeMagic)+saltLen]
	nonce := sealed[len(EnvelopeMagic)+saltLen : head]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed[head:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return plain, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
