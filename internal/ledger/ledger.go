package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/rainlanguage/orderbook-trades/internal/common"
	"github.com/rs/zerolog/log"
)

// File is the subset of *os.File the store writes through.
type File interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

// OpenFunc opens the ledger for appending.
type OpenFunc func(path string) (File, error)

func openForAppend(path string) (File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// AppendResult describes what a single Append call persisted.
type AppendResult struct {
	// Appended holds the records actually written, in ledger order.
	Appended []common.TradeRecord
	// Duplicates counts records skipped because their identity was already
	// in the ledger or repeated within the batch.
	Duplicates int
}

// Store is an append-only CSV ledger of trade records. The file is the only
// source of truth: the resume point is recomputed from it on every load.
type Store struct {
	path string
	open OpenFunc

	mu         sync.Mutex
	loaded     bool
	identities *common.Set[common.TradeIdentity]
	records    int
	maxBlock   uint64
	// validSize is the byte length of the complete lines in the file.
	validSize int64
	// tornTail is set when the file ends with a partially written line.
	tornTail bool
}

type Option func(*Store)

// WithOpenFunc replaces how the ledger file is opened for writing.
func WithOpenFunc(open OpenFunc) Option {
	return func(s *Store) {
		s.open = open
	}
}

func New(path string, opts ...Option) *Store {
	s := &Store{
		path:       path,
		open:       openForAppend,
		identities: common.NewSet[common.TradeIdentity](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// LoadResumePoint re-reads the ledger and returns the next block to fetch:
// the highest block in the ledger when records exist, deploymentBlock
// otherwise. Records are committed in (block, log index) order, so an
// interrupted window can only be missing records at or above that block.
// Fetching it again is absorbed by de-duplication.
func (s *Store) LoadResumePoint(deploymentBlock uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return 0, err
	}
	if s.records == 0 {
		return deploymentBlock, nil
	}
	return max(s.maxBlock, deploymentBlock), nil
}

// Append writes the records that are not already present, in the given
// order, with a single write followed by fsync. On failure the file is
// truncated back to its previous length so a reader sees all of the batch or
// none of it.
func (s *Store) Append(records []common.TradeRecord) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.load(); err != nil {
			return AppendResult{}, err
		}
	}

	result := AppendResult{Appended: make([]common.TradeRecord, 0, len(records))}
	batch := common.NewSet[common.TradeIdentity]()
	for _, record := range records {
		id := record.Identity()
		if s.identities.Contains(id) || !batch.AddIfAbsent(id) {
			result.Duplicates++
			continue
		}
		result.Appended = append(result.Appended, record)
	}
	if len(result.Appended) == 0 && !s.tornTail {
		return result, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if s.validSize == 0 {
		if err := w.Write(Header); err != nil {
			return AppendResult{}, &WriteError{Path: s.path, RolledBack: true, Err: err}
		}
	}
	for _, record := range result.Appended {
		if err := w.Write(EncodeRecord(record)); err != nil {
			return AppendResult{}, &WriteError{Path: s.path, RolledBack: true, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return AppendResult{}, &WriteError{Path: s.path, RolledBack: true, Err: err}
	}

	if err := s.writeAll(buf.Bytes()); err != nil {
		return AppendResult{}, err
	}

	for _, record := range result.Appended {
		s.identities.Add(record.Identity())
		s.maxBlock = max(s.maxBlock, record.BlockNumber)
	}
	s.records += len(result.Appended)
	s.validSize += int64(buf.Len())
	s.tornTail = false
	return result, nil
}

func (s *Store) writeAll(data []byte) error {
	f, err := s.open(s.path)
	if err != nil {
		return &WriteError{Path: s.path, RolledBack: true, Err: err}
	}

	if s.tornTail {
		if err := f.Truncate(s.validSize); err != nil {
			f.Close()
			return &WriteError{Path: s.path, RolledBack: true, Err: err}
		}
		log.Warn().Str("path", s.path).Int64("size", s.validSize).Msg("Dropped partially written line from ledger")
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if err == nil {
		err = f.Close()
		if err == nil {
			return nil
		}
		return s.rollback(nil, err)
	}
	return s.rollback(f, err)
}

func (s *Store) rollback(f File, cause error) error {
	var rollbackErr error
	if f != nil {
		rollbackErr = f.Truncate(s.validSize)
		if rollbackErr == nil {
			rollbackErr = f.Sync()
		}
		f.Close()
	} else {
		rollbackErr = os.Truncate(s.path, s.validSize)
	}
	if rollbackErr != nil {
		log.Error().Err(rollbackErr).Str("path", s.path).Msg("Failed to roll back ledger after failed append")
		// the on-disk state is unknown until the next load
		s.loaded = false
		return &WriteError{Path: s.path, RolledBack: false, Err: errors.Join(cause, rollbackErr)}
	}
	s.tornTail = false
	return &WriteError{Path: s.path, RolledBack: true, Err: cause}
}

// ReadAll returns every complete record in the ledger in file order.
func (s *Store) ReadAll() ([]common.TradeRecord, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []common.TradeRecord
	_, err = parse(s.path, content, func(record common.TradeRecord) {
		records = append(records, record)
	})
	return records, err
}

func (s *Store) load() error {
	s.loaded = false
	s.identities = common.NewSet[common.TradeIdentity]()
	s.records = 0
	s.maxBlock = 0
	s.validSize = 0
	s.tornTail = false

	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}

	validSize, err := parse(s.path, content, func(record common.TradeRecord) {
		s.identities.Add(record.Identity())
		s.records++
		s.maxBlock = max(s.maxBlock, record.BlockNumber)
	})
	if err != nil {
		return err
	}
	s.validSize = validSize
	s.tornTail = validSize < int64(len(content))
	if s.tornTail {
		log.Warn().Str("path", s.path).Int("bytes", len(content)-int(validSize)).Msg("Ledger ends with a partially written line, ignoring it")
	}
	s.loaded = true
	return nil
}

// parse reads the complete lines of content and returns their byte length.
// Bytes after the last newline are a line torn by an interrupted write and
// are not parsed.
func parse(path string, content []byte, fn func(common.TradeRecord)) (int64, error) {
	validSize := int64(bytes.LastIndexByte(content, '\n') + 1)
	if validSize == 0 {
		return 0, nil
	}

	r := csv.NewReader(bytes.NewReader(content[:validSize]))
	r.FieldsPerRecord = len(Header)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return 0, corruptf(path, "header: %v", err)
	}
	if !slices.Equal(header, Header) {
		return 0, corruptf(path, "unexpected header %v", header)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, corruptf(path, "%v", err)
		}
		record, err := DecodeRecord(row)
		if err != nil {
			line, _ := r.FieldPos(0)
			return 0, corruptf(path, "line %d: %v", line, err)
		}
		fn(record)
	}
	return validSize, nil
}
