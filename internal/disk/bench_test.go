package disk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunBench(t *testing.T) {
	r := require.New(t)
	dev := newTestDevice(t, true)

	var calls []int
	res, err := RunBench(dev, 2500, 42, func(done, total int) {
		r.Equal(2500, total)
		calls = append(calls, done)
	})
	r.NoError(err)
	r.Equal(2500, res.Ops)
	r.Equal(res.Ops, res.Reads+res.Writes)
	r.Positive(res.Verified)
	r.Equal([]int{1000, 2000}, calls)

	st := dev.Stats()
	r.Equal(uint64(res.Reads), st.Reads)
	r.Equal(uint64(res.Writes), st.Writes)
}

func TestRunBenchDeterministic(t *testing.T) {
	r := require.New(t)

	a, err := RunBench(newTestDevice(t, false), 500, 7, nil)
	r.NoError(err)
	b, err := RunBench(newTestDevice(t, false), 500, 7, nil)
	r.NoError(err)

	r.Equal(a.Reads, b.Reads)
	r.Equal(a.Writes, b.Writes)
	r.Equal(a.Verified, b.Verified)
}

type flakyDevice struct {
	*Device
	reads int
}

func (d *flakyDevice) ReadBlock(c, s int) ([]byte, error) {
	block, err := d.Device.ReadBlock(c, s)
	d.reads++
	if err == nil && d.reads%5 == 0 {
		block[0] ^= 0xff
	}
	return block, err
}

func TestRunBenchDetectsCorruption(t *testing.T) {
	dev := &flakyDevice{Device: newTestDevice(t, false)}
	_, err := RunBench(dev, 5000, 1, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match")
}
