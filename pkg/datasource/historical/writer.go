package historical

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/peter-kozarec/replay/pkg/common"
)

// WriteBars stores bars in the binary layout read by Source[BinaryBar].
func WriteBars(path string, bars []common.Bar) (err error) {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for i, b := range bars {
		if err := binary.Write(w, binary.LittleEndian, NewBinaryBar(b)); err != nil {
			return fmt.Errorf("unable to write bar %d: %w", i, err)
		}
	}
	return w.Flush()
}
