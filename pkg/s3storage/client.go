// "Тупой" клиент: список, скачивание и загрузка объектов.
// Что считать обучающим файлом, решает dataset.

package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ilkoid/goose-tune/pkg/config"
)

// ClientInterface определяет интерфейс для S3 клиента.
// Используется для мокания в тестах и внедрения зависимостей.
type ClientInterface interface {
	ListFiles(ctx context.Context, prefix string) ([]StoredObject, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// Uploader — загрузка артефактов обучения.
type Uploader interface {
	UploadDir(ctx context.Context, localDir, prefix string) ([]string, error)
}

type Client struct {
	api    *minio.Client
	bucket string
}

// Проверка что Client реализует интерфейсы
var (
	_ ClientInterface = (*Client)(nil)
	_ Uploader        = (*Client)(nil)
)

// StoredObject - сырой объект из S3
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 is not configured (endpoint and bucket are required)")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
	}, nil
}

// ListFiles возвращает ВСЕ файлы по префиксу.
//
// Пустой префикс — не ошибка: пустой список означает пустой набор,
// решение о том, критично ли это, принимает вызывающий.
func (c *Client) ListFiles(ctx context.Context, prefix string) ([]StoredObject, error) {
	// Нормализация префикса (добавляем слеш, если это "папка")
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}

	var objects []StoredObject

	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}

	for obj := range c.api.ListObjects(ctx, c.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", c.bucket, prefix, obj.Err)
		}
		// Пропускаем саму "папку"
		if obj.Key == prefix || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return objects, nil
}

// DownloadFile скачивает объект целиком в память
func (c *Client) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return buf.Bytes(), nil
}

// UploadFile загружает локальный файл под ключом key.
func (c *Client) UploadFile(ctx context.Context, localPath, key string) error {
	_, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, key, err)
	}
	return nil
}

// UploadDir загружает дерево localDir под префикс prefix и возвращает
// список загруженных ключей.
func (c *Client) UploadDir(ctx context.Context, localDir, prefix string) ([]string, error) {
	files, err := collectFiles(localDir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		key := ObjectKey(prefix, rel)
		if err := c.UploadFile(ctx, filepath.Join(localDir, rel), key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ObjectKey склеивает префикс и относительный путь в ключ объекта.
func ObjectKey(prefix, rel string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.ToSlash(rel))
}

// collectFiles возвращает относительные пути всех обычных файлов в dir.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact dir %s does not exist", dir)
		}
		return nil, err
	}
	return files, nil
}
