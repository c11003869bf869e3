package oss

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"

	"github.com/migratesafely/membership_server/config"
)

const defaultSignExpire = int64(3600)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// ReceiptKey 付款凭证的对象路径
func ReceiptKey(userID int64, ext string) string {
	return fmt.Sprintf("receipts/%d/%s%s", userID, uuid.NewString(), strings.ToLower(ext))
}

// PutReceipt 上传付款凭证，返回 object key。凭证为私有对象，只通过签名 URL 访问
func (c *Client) PutReceipt(userID int64, data []byte, ext string) (string, error) {
	objectKey := ReceiptKey(userID, ext)

	err := c.bucket.PutObject(objectKey, bytes.NewReader(data),
		oss.ContentType(ContentType(ext)),
		oss.ObjectACL(oss.ACLPrivate),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt: %w", err)
	}

	return objectKey, nil
}

// Delete 删除文件
func (c *Client) Delete(objectKey string) error {
	if err := c.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetURL 公开访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// SignedURL 生成带签名的临时访问 URL（默认 1 小时）
func (c *Client) SignedURL(objectKey string, expireSeconds int64) (string, error) {
	if expireSeconds <= 0 {
		expireSeconds = defaultSignExpire
	}

	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, expireSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return signedURL, nil
}

// ContentType 根据扩展名获取 Content-Type
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
