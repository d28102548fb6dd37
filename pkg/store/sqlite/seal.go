package sqlitestore

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24
	saltSize  = 16
	saltName  = "seal_salt"

	// argon2id parameters for the sealing key
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// deriveKey stretches secret with argon2id and the database's salt. The salt is
// generated and stored the first time a database is opened.
func deriveKey(db *sqlx.DB, secret string) ([32]byte, error) {
	var key [32]byte
	var salt []byte
	err := db.Get(&salt, "SELECT value FROM store_meta WHERE name = ?", saltName)
	if errors.Is(err, sql.ErrNoRows) {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return key, fmt.Errorf("generate salt: %w", err)
		}
		_, err = db.Exec("INSERT INTO store_meta (name, value) VALUES (?, ?)", saltName, salt)
	}
	if err != nil {
		return key, fmt.Errorf("load seal salt: %w", err)
	}
	copy(key[:], argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, uint32(len(key))))
	return key, nil
}

// seal encrypts plaintext, prefixing the random nonce
func (s *SqliteStore) seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *SqliteStore) open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedPassword
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	out, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedPassword
	}
	return out, nil
}
