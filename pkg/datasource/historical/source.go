package historical

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var (
	ErrEof          = errors.New("EOF")
	ErrNotOpen      = errors.New("source is not open")
	ErrTruncatedRow = errors.New("file size is not a multiple of entry size")
)

// Source reads fixed size records of T from a memory mapped file. T must be
// a struct of fixed size fields without pointers.
type Source[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	entrySize      int
	buffer         []byte
}

func NewSource[T any](dataSourceName string) *Source[T] {
	size := int(unsafe.Sizeof(*new(T)))
	return &Source[T]{
		dataSourceName: dataSourceName,
		entrySize:      size,
		buffer:         make([]byte, size),
	}
}

func (s *Source[T]) Open() error {
	var err error
	s.reader, err = mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}
	if s.reader.Len()%s.entrySize != 0 {
		_ = s.reader.Close()
		s.reader = nil
		return fmt.Errorf("%q: %w", s.dataSourceName, ErrTruncatedRow)
	}
	return nil
}

func (s *Source[T]) Close() {
	if s.reader != nil {
		_ = s.reader.Close()
		s.reader = nil
	}
}

func (s *Source[T]) Read(index int64, data *T) error {
	if s.reader == nil {
		return ErrNotOpen
	}

	offset := index * int64(s.entrySize)
	n, err := s.reader.ReadAt(s.buffer, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < s.entrySize {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&s.buffer[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() (int64, error) {
	if s.reader == nil {
		return 0, ErrNotOpen
	}
	if s.entrySize == 0 {
		return 0, fmt.Errorf("size of T is zero")
	}
	return int64(s.reader.Len() / s.entrySize), nil
}
