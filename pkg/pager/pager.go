// Package pager provides fixed-size block based file I/O. It knows
// nothing about what the blocks contain; it only moves whole blocks
// between memory and file offsets.
package pager

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Pager maps block ids to byte offsets in one backing file. Block id
// N lives at offset N*blockSize. Every write goes straight to the
// file, there is no write-behind cache.
type Pager struct {
	file      *os.File
	fileName  string
	blockSize int
}

// Create creates the named file and returns a pager over it. Fails if
// a file already exists at that path.
func Create(fileName string, blockSize int, perm os.FileMode) (*Pager, error) {
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_EXCL|os.O_RDWR, perm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create block file")
	}

	return &Pager{
		file:      f,
		fileName:  fileName,
		blockSize: blockSize,
	}, nil
}

// Open opens an existing file as a block file. Fails if the file does
// not exist or is shorter than one block.
func Open(fileName string, blockSize int, perm os.FileMode) (*Pager, error) {
	f, err := os.OpenFile(fileName, os.O_RDWR, perm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open block file")
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "failed to stat block file")
	}

	if info.Size() < int64(blockSize) {
		_ = f.Close()
		return nil, errors.New("file is shorter than one block")
	}

	return &Pager{
		file:      f,
		fileName:  fileName,
		blockSize: blockSize,
	}, nil
}

// ReadBlock reads the block with the given id. A read that returns
// fewer than blockSize bytes is an error.
func (p *Pager) ReadBlock(id uint64) ([]byte, error) {
	buf := make([]byte, p.blockSize)
	if _, err := p.file.ReadAt(buf, p.offset(id)); err != nil {
		return nil, errors.Wrapf(err, "failed to read block %d", id)
	}
	return buf, nil
}

// WriteBlock writes the given block in place at its id's offset. The
// buffer must be exactly one block.
func (p *Pager) WriteBlock(id uint64, d []byte) error {
	if len(d) != p.blockSize {
		return fmt.Errorf("invalid block size %d (expected: %d)", len(d), p.blockSize)
	}

	if _, err := p.file.WriteAt(d, p.offset(id)); err != nil {
		return errors.Wrapf(err, "failed to write block %d", id)
	}
	return nil
}

// Count returns the number of whole blocks currently in the file.
func (p *Pager) Count() (uint64, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "failed to stat block file")
	}
	return uint64(info.Size()) / uint64(p.blockSize), nil
}

// BlockSize returns the block size the pager was opened with.
func (p *Pager) BlockSize() int { return p.blockSize }

// Close releases the underlying file handle. Writes are synchronous,
// so there is nothing to flush.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}

	err := p.file.Close()
	p.file = nil
	return errors.Wrap(err, "failed to close block file")
}

func (p *Pager) String() string {
	return fmt.Sprintf("Pager{file='%s', blockSize=%d}", p.fileName, p.blockSize)
}

func (p *Pager) offset(id uint64) int64 {
	return int64(id) * int64(p.blockSize)
}
