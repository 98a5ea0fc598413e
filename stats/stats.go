// Package stats keeps persistent per-file response counters.
package stats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/boltdb/bolt"
	"github.com/charmbracelet/log"
)

const (
	filesBucket = "files"

	// NoFile is the bucket used when a request never named a file.
	NoFile = "<none>"
)

var (
	// ErrNoRecord is returned by Get when the file was never requested.
	ErrNoRecord = errors.New("no record for file")

	// ErrNotConnected is returned when the database has not been opened.
	ErrNotConnected = errors.New("stats database is not connected")
)

// Counts maps a status code to the number of responses sent with it.
type Counts map[int]uint64

// Service stores counters in a BoltDB file.
type Service struct {
	db     *bolt.DB
	logger *log.Logger
}

// Connect opens the database, creating parent directories as needed.
func (s *Service) Connect(dbName string, mode os.FileMode, options *bolt.Options) (err error) {
	if dir := filepath.Dir(dbName); dir != "." {
		if err = os.MkdirAll(dir, 0o770); err != nil {
			return fmt.Errorf("create stats directory: %w", err)
		}
	}

	s.db, err = bolt.Open(dbName, mode, options)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(filesBucket))
		return err
	})
}

// Close closes the database.
func (s *Service) Close() (err error) {
	if s.db == nil {
		return nil
	}
	err = s.db.Close()
	return
}

// SetLogger sets the logger.
func (s *Service) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// Record increments the counter of code for fileName.
func (s *Service) Record(fileName string, code int) (err error) {
	if s.db == nil {
		return ErrNotConnected
	}
	if fileName == "" {
		fileName = NoFile
	}

	err = s.db.Batch(func(tx *bolt.Tx) error {
		files := tx.Bucket([]byte(filesBucket))
		b, err := files.CreateBucketIfNotExists([]byte(fileName))
		if err != nil {
			return fmt.Errorf("create bucket \"%s\": %w", fileName, err)
		}

		key := []byte(strconv.Itoa(code))
		var n uint64
		if v := b.Get(key); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}

		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, n+1)
		if err := b.Put(key, value); err != nil {
			return fmt.Errorf("put count: %w", err)
		}
		return nil
	})
	if err != nil && s.logger != nil {
		s.logger.Debug("Record failed", "file", fileName, "code", code, "err", err)
	}
	return
}

// Get returns the counters for fileName.
func (s *Service) Get(fileName string) (counts Counts, err error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(filesBucket)).Bucket([]byte(fileName))
		if b == nil {
			return fmt.Errorf("%w: \"%s\"", ErrNoRecord, fileName)
		}
		counts, err = readCounts(b)
		return err
	})
	return
}

// All returns the counters of every file seen so far.
func (s *Service) All() (all map[string]Counts, err error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	all = make(map[string]Counts)
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(filesBucket)).ForEach(func(name, v []byte) error {
			if v != nil {
				return nil
			}
			b := tx.Bucket([]byte(filesBucket)).Bucket(name)
			counts, err := readCounts(b)
			if err != nil {
				return err
			}
			all[string(name)] = counts
			return nil
		})
	})
	return
}

func readCounts(b *bolt.Bucket) (Counts, error) {
	counts := make(Counts)
	err := b.ForEach(func(k, v []byte) error {
		code, err := strconv.Atoi(string(k))
		if err != nil {
			return fmt.Errorf("bad status key %q: %w", k, err)
		}
		if len(v) != 8 {
			return fmt.Errorf("bad counter for %d", code)
		}
		counts[code] = binary.BigEndian.Uint64(v)
		return nil
	})
	return counts, err
}
