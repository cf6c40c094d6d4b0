package jwt

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// KeySource supplies signing and verification key material. Implementations
// must be safe for concurrent use; the manager consults the source on every
// mint and parse so a source may rotate keys underneath it.
type KeySource interface {
	// SigningKey returns the current key id and private key material.
	SigningKey() (kid string, key []byte, err error)
	// VerifyKey returns the verification key for a key id. An empty kid
	// asks for the current key.
	VerifyKey(kid string) ([]byte, error)
}

// StaticKeys is a fixed in-memory [KeySource]. For HS256 only Private is
// needed; for Ed25519 set both halves. Previous is consulted for tokens
// signed before the last rotation.
type StaticKeys struct {
	KeyID    string
	Private  []byte
	Public   []byte
	Previous map[string][]byte
}

func (s *StaticKeys) SigningKey() (string, []byte, error) {
	if len(s.Private) == 0 {
		return "", nil, errors.New("no signing key configured")
	}
	return s.KeyID, s.Private, nil
}

func (s *StaticKeys) VerifyKey(kid string) ([]byte, error) {
	if kid == "" || kid == s.KeyID {
		if len(s.Public) > 0 {
			return s.Public, nil
		}
		return s.Private, nil
	}
	if key, ok := s.Previous[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

// FileKeys loads key material from files and hot-reloads it when the files
// change, so keys rotate without a restart. Writes are debounced because
// editors and secret mounts produce bursts of filesystem events.
type FileKeys struct {
	keyID       string
	privatePath string
	publicPath  string

	mu      sync.RWMutex
	private []byte
	public  []byte

	watcher *fsnotify.Watcher
	done    chan struct{}
}

const fileKeysDebounce = 500 * time.Millisecond

// NewFileKeys reads the key files and starts watching them. publicPath may
// be empty for HMAC methods. Call Close to stop the watcher.
func NewFileKeys(keyID, privatePath, publicPath string) (*FileKeys, error) {
	f := &FileKeys{
		keyID:       keyID,
		privatePath: privatePath,
		publicPath:  publicPath,
		done:        make(chan struct{}),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(privatePath); err != nil {
		watcher.Close()
		return nil, err
	}
	if publicPath != "" {
		if err := watcher.Add(publicPath); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	f.watcher = watcher

	go f.watch()
	return f, nil
}

func (f *FileKeys) SigningKey() (string, []byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.private) == 0 {
		return "", nil, errors.New("no signing key loaded")
	}
	return f.keyID, f.private, nil
}

func (f *FileKeys) VerifyKey(kid string) ([]byte, error) {
	if kid != "" && kid != f.keyID {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.public) > 0 {
		return f.public, nil
	}
	return f.private, nil
}

// Close stops the file watcher.
func (f *FileKeys) Close() error {
	close(f.done)
	return f.watcher.Close()
}

func (f *FileKeys) reload() error {
	private, err := os.ReadFile(f.privatePath)
	if err != nil {
		return fmt.Errorf("read signing key: %w", err)
	}
	var public []byte
	if f.publicPath != "" {
		public, err = os.ReadFile(f.publicPath)
		if err != nil {
			return fmt.Errorf("read verify key: %w", err)
		}
	}

	f.mu.Lock()
	f.private = private
	f.public = public
	f.mu.Unlock()
	return nil
}

func (f *FileKeys) watch() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
				if timer != nil {
					timer.Reset(fileKeysDebounce)
				} else {
					timer = time.NewTimer(fileKeysDebounce)
					fire = timer.C
				}
			}
		case _, ok := <-f.watcher.Errors:
			// Watch errors must be consumed or fsnotify stops
			// delivering events; the next event re-syncs state.
			if !ok {
				return
			}
		case <-fire:
			timer = nil
			fire = nil
			// Keep serving the old key if the reload fails; a broken
			// half-written file must not take signing down.
			if err := f.reload(); err == nil {
				// Secret mounts replace files via rename, dropping the
				// watch on the old inode.
				f.watcher.Add(f.privatePath)
				if f.publicPath != "" {
					f.watcher.Add(f.publicPath)
				}
			}
		case <-f.done:
			return
		}
	}
}
