// Package registry is the account registry: a hierarchical key-value store
// of per-tenant parameters, sealed at rest.
package registry

import (
	"context"
	"crypto/sha256"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// Sub-keys read for every tenant.
const (
	KeySlackChannel    = "slack-channel"
	KeySlackWebhookURL = "slack-webhook-url"
	KeyZoomToken       = "zoom-jwt-token"
)

var ErrNotFound = errors.New("parameter not found")

// Parameter is one entry of a path listing. Err is set when the stored value
// could not be unsealed; Value is empty in that case.
type Parameter struct {
	Name  string
	Value string
	Err   error
}

type Store struct {
	db *badger.DB
	sc *securecookie.SecureCookie
}

// Open opens (or creates) the registry in dir.
func Open(dir string, key []byte) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "registry path")
	}
	return open(badger.DefaultOptions(abs), key)
}

// OpenInMemory returns a registry that lives only as long as the process.
func OpenInMemory(key []byte) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), key)
}

func open(opts badger.Options, key []byte) (*Store, error) {
	sc, err := sealer(key)
	if err != nil {
		return nil, err
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	return &Store{db: db, sc: sc}, nil
}

// sealer derives independent HMAC and AES keys from the master key.
func sealer(master []byte) (*securecookie.SecureCookie, error) {
	if len(master) < 32 {
		return nil, errors.New("registry key must be at least 32 bytes")
	}
	hashKey := make([]byte, 64)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("casualchat registry hash")), hashKey); err != nil {
		return nil, errors.Wrap(err, "derive hash key")
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("casualchat registry block")), blockKey); err != nil {
		return nil, errors.Wrap(err, "derive block key")
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// registry values do not expire
	sc.MaxAge(0)
	sc.MaxLength(8192)
	return sc, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put seals value under name. The seal is bound to the name, so a value
// copied to another key does not unseal.
func (s *Store) Put(ctx context.Context, name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sealed, err := s.sc.Encode(name, value)
	if err != nil {
		return errors.Wrapf(err, "seal %s", name)
	}
	return errors.Wrapf(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), []byte(sealed))
	}), "put %s", name)
}

func (s *Store) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sealed string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			sealed = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", errors.Wrap(ErrNotFound, name)
	}
	if err != nil {
		return "", errors.Wrapf(err, "get %s", name)
	}
	return s.unseal(name, sealed)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrapf(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(name))
	}), "delete %s", name)
}

// GetByPath lists every parameter whose name starts with prefix, in key
// order. Values that fail to unseal are reported on the parameter.
func (s *Store) GetByPath(ctx context.Context, prefix string) ([]Parameter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Parameter
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			name := string(item.KeyCopy(nil))
			val, err := item.ValueCopy(nil)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			param := Parameter{Name: name}
			param.Value, param.Err = s.unseal(name, string(val))
			out = append(out, param)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", prefix)
	}
	return out, nil
}

func (s *Store) unseal(name, sealed string) (string, error) {
	var v string
	if err := s.sc.Decode(name, sealed, &v); err != nil {
		return "", errors.Wrapf(err, "unseal %s", name)
	}
	return v, nil
}

func validName(name string) error {
	if !strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return errors.Errorf("invalid parameter name %q", name)
	}
	return nil
}

// TenantKey builds the full parameter name for one tenant sub-key.
func TenantKey(prefix, accountID, sub string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + accountID + "/" + sub
}

// Dir opens the registry at Path for each listing and closes it again, so
// long-running processes do not hold the directory lock between triggers.
type Dir struct {
	Path string
	Key  []byte
}

func (d Dir) GetByPath(ctx context.Context, prefix string) ([]Parameter, error) {
	s, err := Open(d.Path, d.Key)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.GetByPath(ctx, prefix)
}
