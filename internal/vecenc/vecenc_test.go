package vecenc

import (
	"errors"
	"testing"
)

func TestMatrixRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
	}{
		{name: "empty set", vectors: [][]float32{}},
		{name: "single vector", vectors: [][]float32{{0.1, -0.5, 3.25}}},
		{
			name: "multiple vectors",
			vectors: [][]float32{
				{1, 0, 0, 0},
				{0, 1, 0, 0},
				{0.5, -0.5, 0.25, -0.25},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := EncodeMatrix(tt.vectors)
			if err != nil {
				t.Fatalf("EncodeMatrix() error = %v", err)
			}

			got, err := DecodeMatrix(blob)
			if err != nil {
				t.Fatalf("DecodeMatrix() error = %v", err)
			}

			if len(got) != len(tt.vectors) {
				t.Fatalf("decoded %d vectors, want %d", len(got), len(tt.vectors))
			}
			for i := range tt.vectors {
				if len(got[i]) != len(tt.vectors[i]) {
					t.Fatalf("vector %d has dimension %d, want %d", i, len(got[i]), len(tt.vectors[i]))
				}
				for j := range tt.vectors[i] {
					if got[i][j] != tt.vectors[i][j] {
						t.Errorf("vector[%d][%d] = %v, want %v", i, j, got[i][j], tt.vectors[i][j])
					}
				}
			}
		})
	}
}

func TestEncodeMatrixRaggedRows(t *testing.T) {
	_, err := EncodeMatrix([][]float32{{1, 2, 3}, {1, 2}})
	if err == nil {
		t.Fatal("EncodeMatrix() expected error for ragged rows")
	}
}

func TestDecodeMatrixInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short header", data: []byte{1, 2, 3}},
		{name: "truncated body", data: []byte{2, 0, 0, 0, 3, 0, 0, 0, 0xaa}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMatrix(tt.data); !errors.Is(err, ErrInvalidBlob) {
				t.Errorf("DecodeMatrix() error = %v, want ErrInvalidBlob", err)
			}
		})
	}
}
