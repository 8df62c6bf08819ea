package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

const uploadRetries = 3

var _ RecordStorage = (*BlockRecordStorage)(nil)

// BlockRecordStorage stores records as JSON objects in an S3 compatible bucket.
type BlockRecordStorage struct {
	cfg      vault_config.BlockStorage
	s3Client *s3.S3
	logger   *logrus.Entry
}

func NewBlockRecordStorage(cfg vault_config.BlockStorage, logger *logrus.Logger) (*BlockRecordStorage, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Host != "" {
		awsCfg.Endpoint = aws.String(cfg.Host)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return &BlockRecordStorage{
		cfg:      cfg,
		s3Client: s3.New(sess),
		logger:   logger.WithField("module", "block_storage"),
	}, nil
}

func (bs *BlockRecordStorage) key(uid string) string {
	return bs.cfg.Prefix + recordFileName(uid)
}

func (bs *BlockRecordStorage) GetRecord(ctx context.Context, uid string) (*types.Record, error) {
	if err := validUID(uid); err != nil {
		return nil, err
	}
	bs.logger.Debugln("get record", uid, "bucket", bs.cfg.Bucket)
	output, err := bs.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bs.cfg.Bucket),
		Key:    aws.String(bs.key(uid)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRecordNotExist
		}
		return nil, fmt.Errorf("failed to get record %s: %w", uid, err)
	}
	defer func() {
		if err := output.Body.Close(); err != nil {
			bs.logger.Error(err)
		}
	}()
	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", uid, err)
	}
	return decodeRecord(uid, content)
}

func (bs *BlockRecordStorage) SaveRecord(ctx context.Context, record types.Record) error {
	if err := validUID(record.UID); err != nil {
		return err
	}
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.UID, err)
	}
	for i := 0; i < uploadRetries; i++ {
		err = bs.upload(ctx, bs.key(record.UID), content)
		if err == nil {
			return nil
		}
		bs.logger.WithError(err).Warnf("upload attempt %d failed", i+1)
	}
	return err
}

func (bs *BlockRecordStorage) upload(ctx context.Context, key string, content []byte) error {
	output, err := bs.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bs.cfg.Bucket),
		Key:           aws.String(key),
		Body:          aws.ReadSeekCloser(bytes.NewReader(content)),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return err
	}
	if output != nil {
		bs.logger.Infof("upload %s success, version id: %s", key, aws.StringValue(output.VersionId))
	}
	return nil
}

func (bs *BlockRecordStorage) Ping(ctx context.Context) error {
	_, err := bs.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bs.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", bs.cfg.Bucket, err)
	}
	return nil
}

func (bs *BlockRecordStorage) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
