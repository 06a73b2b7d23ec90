package historical

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
)

const invalidIndex = -1

// BarReader streams one security's bars between from and to.
type BarReader struct {
	source *Source[BinaryBar]

	security  string
	frequency common.Frequency
	loc       *time.Location
	from      int64
	to        int64
	idx       int64
}

func NewBarReader(source *Source[BinaryBar], security string, frequency common.Frequency, from, to time.Time) *BarReader {
	return &BarReader{
		source:    source,
		security:  security,
		frequency: frequency,
		loc:       from.Location(),
		from:      from.UnixNano(),
		to:        to.UnixNano(),
		idx:       invalidIndex,
	}
}

func (r *BarReader) Next() (common.Bar, error) {
	var bar common.Bar
	var binBar BinaryBar

	if r.idx == invalidIndex {
		if err := r.lookupStartIndex(); err != nil {
			return bar, err
		}
	}

	if err := r.source.Read(r.idx, &binBar); err != nil {
		if errors.Is(err, ErrEof) {
			return bar, datasource.ErrEndOfStream
		}
		return bar, fmt.Errorf("error reading entry at index %d: %w", r.idx, err)
	}
	r.idx++

	if binBar.TimeStamp > r.to {
		return bar, datasource.ErrEndOfStream
	}

	binBar.ToBar(r.security, r.frequency, r.loc, &bar)
	return bar, nil
}

func (r *BarReader) Reset() {
	r.idx = invalidIndex
}

func (r *BarReader) lookupStartIndex() error {
	entryCount, err := r.source.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}

	var entry BinaryBar

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := r.source.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < r.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	r.idx = low
	return nil
}

// Directory is a BarSource over files named <security>.<frequency>.bin.
type Directory struct {
	dir     string
	from    time.Time
	to      time.Time
	readers map[string]*BarReader
	sources []*Source[BinaryBar]
}

func NewDirectory(dir string, from, to time.Time) *Directory {
	return &Directory{
		dir:     dir,
		from:    from,
		to:      to,
		readers: make(map[string]*BarReader),
	}
}

func FileName(security string, frequency common.Frequency) string {
	return fmt.Sprintf("%s.%s.bin", security, frequency)
}

func (d *Directory) Next(security string, frequency common.Frequency) (common.Bar, error) {
	name := FileName(security, frequency)
	r, ok := d.readers[name]
	if !ok {
		src := NewSource[BinaryBar](filepath.Join(d.dir, name))
		if err := src.Open(); err != nil {
			return common.Bar{}, fmt.Errorf("%w: %w", datasource.ErrDataIntegrity, err)
		}
		d.sources = append(d.sources, src)
		r = NewBarReader(src, security, frequency, d.from, d.to)
		d.readers[name] = r
	}
	return r.Next()
}

func (d *Directory) Reset() {
	for _, r := range d.readers {
		r.Reset()
	}
}

func (d *Directory) Close() {
	for _, s := range d.sources {
		s.Close()
	}
}
