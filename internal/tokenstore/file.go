package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pribylovaa/aihub-client/pkg/log"
)

// File хранит учётные данные одним JSON-документом на профиль.
//
// Документ перезаписывается целиком через временный файл и rename, поэтому
// другой процесс видит либо старую, либо новую пару токенов. Нечитаемый или
// повреждённый файл трактуется как отсутствие токенов.
type File struct {
	mu   sync.Mutex
	path string
}

// document — формат файла: значения хранятся как строки, профиль в виде
// сериализованного JSON.
type document map[string]string

// NewFile создаёт хранилище по пути path. Каталог создаётся при первой записи.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path возвращает путь к файлу.
func (f *File) Path() string { return f.path }

func (f *File) AccessToken(ctx context.Context) (string, error) {
	return f.get(ctx, KeyAccessToken)
}

func (f *File) RefreshToken(ctx context.Context) (string, error) {
	return f.get(ctx, KeyRefreshToken)
}

func (f *File) Identity(ctx context.Context) ([]byte, error) {
	v, err := f.get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}

	return []byte(v), nil
}

func (f *File) SetTokens(ctx context.Context, access, refresh string) error {
	const op = "tokenstore/file/SetTokens"

	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.read(ctx)
	doc[KeyAccessToken] = access
	doc[KeyRefreshToken] = refresh

	if err := f.write(doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (f *File) SetIdentity(ctx context.Context, user []byte) error {
	const op = "tokenstore/file/SetIdentity"

	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.read(ctx)
	doc[KeyUser] = string(user)

	if err := f.write(doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Clear удаляет файл целиком: оба токена и профиль исчезают одновременно.
func (f *File) Clear(_ context.Context) error {
	const op = "tokenstore/file/Clear"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Watch вызывает onChange при каждом внешнем изменении файла (вход или
// выход в другом процессе) до отмены ctx. Следит за каталогом, так как
// запись через rename заменяет inode файла.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	const op = "tokenstore/file/Watch"

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger := log.From(ctx).With(slog.String("path", f.path))
	logger.Debug("token_watch_start")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("token_watch_stop")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("token_watch_error", slog.String("err", err.Error()))
		}
	}
}

func (f *File) get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	doc := f.read(ctx)
	f.mu.Unlock()

	v := doc[key]
	if v == "" {
		return "", ErrNotFound
	}

	return v, nil
}

// read возвращает документ; отсутствующий или повреждённый файл даёт пустой.
func (f *File) read(ctx context.Context) document {
	doc := document{}

	b, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.From(ctx).Warn("token_store_unreadable",
				slog.String("path", f.path),
				slog.String("err", err.Error()),
			)
		}
		return doc
	}

	if err := json.Unmarshal(b, &doc); err != nil {
		log.From(ctx).Warn("token_store_corrupt",
			slog.String("path", f.path),
			slog.String("err", err.Error()),
		)
		return document{}
	}

	return doc
}

func (f *File) write(doc document) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Join(ErrUnavailable, err)
	}

	return nil
}
