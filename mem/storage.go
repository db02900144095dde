// Package mem provides the host memory model and the messages that access it.
package mem

import "errors"

// A Storage keeps the data of the simulated host memory.
//
// The storage allocates backing memory lazily in fixed-size units. Units
// that are never touched by a Read or Write do not consume space.
type Storage struct {
	unitSize uint64
	capacity uint64
	units    map[uint64][]byte
}

// NewStorage creates a storage object with the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	s := new(Storage)

	s.unitSize = 4096
	s.capacity = capacity
	s.units = make(map[uint64][]byte)

	return s
}

// Capacity returns the number of bytes that the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unitFor(address uint64) ([]byte, error) {
	if address >= s.capacity {
		return nil, errors.New("address beyond storage capacity")
	}

	baseAddr, _ := s.splitAddress(address)
	unit, ok := s.units[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.units[baseAddr] = unit
	}

	return unit, nil
}

func (s *Storage) splitAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr
	return
}

// Read returns numBytes bytes starting at address. Unwritten bytes read as
// zero.
func (s *Storage) Read(address, numBytes uint64) ([]byte, error) {
	res := make([]byte, numBytes)

	currAddr := address
	bytesLeft := numBytes
	offset := uint64(0)

	for currAddr < address+numBytes {
		unit, err := s.unitFor(currAddr)
		if err != nil {
			return nil, err
		}

		baseAddr, inUnitAddr := s.splitAddress(currAddr)
		bytesLeftInUnit := baseAddr + s.unitSize - currAddr
		bytesToRead := bytesLeftInUnit
		if bytesLeft < bytesLeftInUnit {
			bytesToRead = bytesLeft
		}

		copy(res[offset:offset+bytesToRead],
			unit[inUnitAddr:inUnitAddr+bytesToRead])
		bytesLeft -= bytesToRead
		offset += bytesToRead
		currAddr += bytesToRead
	}

	return res, nil
}

// Write stores the data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	currAddr := address
	offset := uint64(0)

	for offset < uint64(len(data)) {
		unit, err := s.unitFor(currAddr)
		if err != nil {
			return err
		}

		baseAddr, inUnitAddr := s.splitAddress(currAddr)
		bytesLeftInData := uint64(len(data)) - offset
		bytesLeftInUnit := baseAddr + s.unitSize - currAddr
		bytesToWrite := bytesLeftInUnit
		if bytesLeftInData < bytesLeftInUnit {
			bytesToWrite = bytesLeftInData
		}

		copy(unit[inUnitAddr:inUnitAddr+bytesToWrite],
			data[offset:offset+bytesToWrite])
		offset += bytesToWrite
		currAddr += bytesToWrite
	}

	return nil
}
