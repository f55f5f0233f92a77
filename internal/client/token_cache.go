package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	tokenKey      = []byte("access_token")
)

// ErrNoToken is returned by Load when nothing usable is cached.
var ErrNoToken = errors.New("no cached session")

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
}

// TokenCache keeps the signed-in session in a local bbolt file.
// Conversation content is never written here.
type TokenCache struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenTokenCache opens (creating if needed) the cache file at path.
func OpenTokenCache(path string) (*TokenCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening token cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, errCreate := tx.CreateBucketIfNotExists(sessionBucket)
		return errCreate
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &TokenCache{db: db, now: time.Now}, nil
}

// Save stores the token, replacing any previous one.
func (c *TokenCache) Save(token, email string, expiresAt time.Time) error {
	enc, err := json.Marshal(cachedToken{AccessToken: token, ExpiresAt: expiresAt, Email: email})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(tokenKey, enc)
	})
}

// Load returns the cached token. Expired or malformed entries yield ErrNoToken.
func (c *TokenCache) Load() (token, email string, err error) {
	var rec cachedToken
	err = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionBucket).Get(tokenKey)
		if len(v) == 0 {
			return ErrNoToken
		}
		if e := json.Unmarshal(v, &rec); e != nil {
			return ErrNoToken
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if rec.AccessToken == "" || !rec.ExpiresAt.After(c.now()) {
		return "", "", ErrNoToken
	}
	return rec.AccessToken, rec.Email, nil
}

// Clear removes the cached token.
func (c *TokenCache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(tokenKey)
	})
}

func (c *TokenCache) Close() error {
	return c.db.Close()
}
