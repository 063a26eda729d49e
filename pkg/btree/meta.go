package btree

import (
	"bytes"

	"go-bindex/pkg/customerrors"

	"github.com/pkg/errors"
)

// magic marker identifying the index file format, stored at the start
// of the header block.
var magic = [8]byte{'4', '3', '4', '8', 'P', 'R', 'J', '3'}

const metadataHeaderSize = 24

// metadata represents the header block (block 0) of the index file.
type metadata struct {
	// temporary state info
	dirty bool

	// actual metadata
	root uint64 // block id of the root node, 0 when the tree is empty
	next uint64 // next block id to hand out on allocation
}

func (m metadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BlockSize)

	copy(buf[0:8], magic[:])
	bin.PutUint64(buf[8:16], m.root)
	bin.PutUint64(buf[16:24], m.next)

	return buf, nil
}

func (m *metadata) UnmarshalBinary(d []byte) error {
	if m == nil {
		return errors.New("cannot unmarshal into nil metadata")
	} else if len(d) < BlockSize {
		return errors.New("in-sufficient data for unmarshal")
	} else if !bytes.Equal(d[0:8], magic[:]) {
		return customerrors.ErrInvalidMagic
	}

	m.root = bin.Uint64(d[8:16])
	m.next = bin.Uint64(d[16:24])

	return nil
}
