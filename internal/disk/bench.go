package disk

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
)

// BenchResult summarizes one RunBench workload.
type BenchResult struct {
	Ops      int
	Reads    int
	Writes   int
	Verified int
	Elapsed  time.Duration
}

func (r BenchResult) String() string {
	perOp := time.Duration(0)
	if r.Ops > 0 {
		perOp = r.Elapsed / time.Duration(r.Ops)
	}
	return fmt.Sprintf("ops=%d reads=%d writes=%d verified=%d elapsed=%s per-op=%s",
		r.Ops, r.Reads, r.Writes, r.Verified, r.Elapsed, perOp)
}

// RunBench issues ops random full-block reads and writes against dev. The
// sequence is fully determined by seed. Blocks written during the run are
// remembered and every later read of them is checked, so a mismatch means
// the device lost or misplaced data. progress, if set, is called every 1000
// operations.
func RunBench(dev domain.BlockDevice, ops int, seed uint64, progress func(done, total int)) (BenchResult, error) {
	geo := dev.Geometry()
	rng := rand.New(rand.NewPCG(seed, seed))
	shadow := make(map[int][]byte)

	res := BenchResult{}
	start := time.Now()
	for i := 1; i <= ops; i++ {
		c := rng.IntN(geo.Cylinders)
		s := rng.IntN(geo.Sectors)
		block := c*geo.Sectors + s

		if rng.IntN(2) == 0 {
			got, err := dev.ReadBlock(c, s)
			if err != nil {
				return res, fmt.Errorf("op %d: read %d/%d: %w", i, c, s, err)
			}
			res.Reads++
			if want, ok := shadow[block]; ok {
				if !bytes.Equal(want, got) {
					return res, fmt.Errorf("op %d: block %d/%d does not match what was written", i, c, s)
				}
				res.Verified++
			}
		} else {
			buf := make([]byte, geo.BlockSize)
			for j := range buf {
				buf[j] = byte(rng.Uint32())
			}
			if err := dev.WriteBlock(c, s, buf); err != nil {
				return res, fmt.Errorf("op %d: write %d/%d: %w", i, c, s, err)
			}
			res.Writes++
			shadow[block] = buf
		}

		res.Ops = i
		if progress != nil && i%1000 == 0 {
			progress(i, ops)
		}
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
