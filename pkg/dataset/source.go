package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/goose-tune/pkg/s3storage"
)

// Source — перечисляемое хранилище файлов с обучающими данными.
//
// Загрузчик не знает, лежат файлы на диске или в бакете: ему нужны
// только список имён и поток байт.
type Source interface {
	// List возвращает имена файлов (порядок не гарантируется).
	List(ctx context.Context) ([]string, error)

	// Open открывает файл по имени из List.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// String описывает источник для логов.
	String() string
}

// S3Scheme — префикс data-dir, указывающий на бакет.
const S3Scheme = "s3://"

// ParseS3Prefix возвращает префикс внутри бакета, если dir имеет вид
// s3://<prefix>. ok = false для локальных путей.
func ParseS3Prefix(dir string) (prefix string, ok bool) {
	if !strings.HasPrefix(dir, S3Scheme) {
		return "", false
	}
	return strings.Trim(strings.TrimPrefix(dir, S3Scheme), "/"), true
}

// DirSource — локальная директория (без рекурсии).
type DirSource struct {
	Dir string
}

var _ Source = DirSource{}

func (s DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", s.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Type().IsRegular():
			names = append(names, e.Name())
		case e.Type()&fs.ModeSymlink != 0:
			// ссылка засчитывается, если ведёт на обычный файл
			if fi, err := os.Stat(filepath.Join(s.Dir, e.Name())); err == nil && fi.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
	}
	return names, nil
}

func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

func (s DirSource) String() string {
	return s.Dir
}

// S3Source — файлы под префиксом в бакете.
type S3Source struct {
	Client s3storage.ClientInterface
	Prefix string
}

var _ Source = S3Source{}

func (s S3Source) List(ctx context.Context) ([]string, error) {
	objects, err := s.Client.ListFiles(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Key)
	}
	return names, nil
}

func (s S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, err := s.Client.DownloadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s S3Source) String() string {
	return S3Scheme + s.Prefix
}
