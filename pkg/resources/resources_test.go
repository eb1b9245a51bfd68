package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Resources
		wantErr bool
	}{
		{
			name:  "scalars",
			input: "cpus:1;mem:1024",
			want:  Resources{Scalar("cpus", 1), Scalar("mem", 1024)},
		},
		{
			name:  "fractional scalar",
			input: "cpus:0.5",
			want:  Resources{Scalar("cpus", 0.5)},
		},
		{
			name:  "ranges",
			input: "ports:[31000-32000,40000-41000]",
			want: Resources{Ranges("ports",
				Range{Begin: 31000, End: 32000},
				Range{Begin: 40000, End: 41000})},
		},
		{
			name:  "set",
			input: "disks:{sda1,sdb2}",
			want:  Resources{Set("disks", "sda1", "sdb2")},
		},
		{
			name:  "mixed with whitespace",
			input: " cpus:4 ; mem:8192 ; ports:[31000-32000] ",
			want: Resources{Scalar("cpus", 4), Scalar("mem", 8192),
				Ranges("ports", Range{Begin: 31000, End: 32000})},
		},
		{
			name:  "duplicate names merge",
			input: "cpus:1;cpus:2",
			want:  Resources{Scalar("cpus", 3)},
		},
		{name: "missing value", input: "cpus", wantErr: true},
		{name: "bad scalar", input: "cpus:abc", wantErr: true},
		{name: "negative scalar", input: "cpus:-1", wantErr: true},
		{name: "inverted range", input: "ports:[20-10]", wantErr: true},
		{name: "unterminated ranges", input: "ports:[10-20", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	in := "cpus:4;mem:8192;ports:[31000-32000]"
	rs, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, rs.String())
}

func TestAddSubtractScalars(t *testing.T) {
	a, err := Parse("cpus:2;mem:512")
	require.NoError(t, err)
	b, err := Parse("cpus:1;mem:256")
	require.NoError(t, err)

	sum := a.Add(b)
	assert.Equal(t, 3.0, sum.GetScalar("cpus", 0))
	assert.Equal(t, 768.0, sum.GetScalar("mem", 0))

	// Add must not mutate the receiver.
	assert.Equal(t, 2.0, a.GetScalar("cpus", 0))

	diff := sum.Subtract(b)
	assert.Equal(t, 2.0, diff.GetScalar("cpus", 0))
	assert.Equal(t, 512.0, diff.GetScalar("mem", 0))
}

func TestAddIsCommutative(t *testing.T) {
	a := Resources{Scalar("cpus", 1), Ranges("ports", Range{Begin: 1, End: 5})}
	b := Resources{Ranges("ports", Range{Begin: 4, End: 10}), Scalar("cpus", 2)}

	left := a.Add(b)
	right := b.Add(a)
	assert.Equal(t, left.GetScalar("cpus", 0), right.GetScalar("cpus", 0))

	lp, _ := left.Get("ports")
	rp, _ := right.Get("ports")
	assert.Equal(t, lp.Ranges, rp.Ranges)
	assert.Equal(t, []Range{{Begin: 1, End: 10}}, lp.Ranges)
}

func TestSubtractRanges(t *testing.T) {
	a := Resources{Ranges("ports", Range{Begin: 31000, End: 32000})}
	b := Resources{Ranges("ports", Range{Begin: 31500, End: 31600})}

	diff := a.Subtract(b)
	r, ok := diff.Get("ports")
	require.True(t, ok)
	assert.Equal(t, []Range{
		{Begin: 31000, End: 31499},
		{Begin: 31601, End: 32000},
	}, r.Ranges)
}

func TestSubtractSet(t *testing.T) {
	a := Resources{Set("disks", "sda1", "sdb2", "sdc3")}
	b := Resources{Set("disks", "sdb2")}

	r, ok := a.Subtract(b).Get("disks")
	require.True(t, ok)
	assert.Equal(t, []string{"sda1", "sdc3"}, r.Set)
}

func TestSubtractUnderflowPanics(t *testing.T) {
	a := Resources{Scalar("cpus", 1)}
	b := Resources{Scalar("cpus", 2)}
	assert.Panics(t, func() { a.Subtract(b) })
}

func TestSubtractAbsentPanics(t *testing.T) {
	a := Resources{Scalar("cpus", 1)}
	assert.Panics(t, func() { a.Minus(Scalar("mem", 1)) })
}

func TestGetScalarDefault(t *testing.T) {
	rs := Resources{Ranges("ports", Range{Begin: 1, End: 2})}
	assert.Equal(t, 0.25, rs.GetScalar("cpus", 0.25))
	// Name exists but is not a scalar.
	assert.Equal(t, 0.0, rs.GetScalar("ports", 0))
}
