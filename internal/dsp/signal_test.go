package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

func TestRotate_InverseRoundTrip(t *testing.T) {
	x := make([]complex128, 1000)
	for i := range x {
		x[i] = complex(float64(i%7)-3, float64(i%5)-2)
	}

	y, err := Rotate(x, 15.36e6, 1200)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	z, err := Rotate(y, 15.36e6, -1200)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	for i := range x {
		if cmplx.Abs(z[i]-x[i]) > 1e-9 {
			t.Fatalf("sample %d: %v != %v", i, z[i], x[i])
		}
	}
}

func TestRotate_RejectsNonPositiveRate(t *testing.T) {
	for _, fs := range []float64{0, -1} {
		if _, err := Rotate([]complex128{1}, fs, 10); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("fs=%v: expected ErrInvalidArgument, got %v", fs, err)
		}
	}
}

func TestMeanPower(t *testing.T) {
	x := []complex128{1, 1i, -1, -1i, complex(math.Sqrt2, 0)}
	if got := MeanPower(x); math.Abs(got-6.0/5.0) > 1e-12 {
		t.Errorf("MeanPower = %v, want 1.2", got)
	}
	if got := MeanPower(nil); got != 0 {
		t.Errorf("MeanPower(nil) = %v, want 0", got)
	}
}

func TestBlockShape(t *testing.T) {
	rows, cols, err := BlockShape([][]complex128{{1, 2, 3}, {4, 5, 6}})
	if err != nil || rows != 2 || cols != 3 {
		t.Fatalf("BlockShape = (%d, %d, %v), want (2, 3, nil)", rows, cols, err)
	}

	if _, _, err := BlockShape(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty block: expected ErrInvalidArgument, got %v", err)
	}
	if _, _, err := BlockShape([][]complex128{{1, 2}, {3}}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ragged block: expected ErrInvalidArgument, got %v", err)
	}
}
