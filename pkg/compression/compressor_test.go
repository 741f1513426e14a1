package compression

import (
	"bytes"
	"testing"
)

func TestRoundTripAllAlgorithms(t *testing.T) {
	original := bytes.Repeat([]byte("some tabular data, repeated enough to compress well "), 200)

	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			compressor, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
			if err != nil {
				t.Fatalf("Failed to create %s compressor: %v", algo, err)
			}

			compressed, err := Compress(compressor, original)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}

			decompressed, err := Decompress(compressor, compressed)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}

			if !bytes.Equal(original, decompressed) {
				t.Errorf("Decompressed data doesn't match original for %s", algo)
			}

			if algo != None && len(compressed) >= len(original) {
				t.Logf("Warning: %s compressed size (%d) is not smaller than original (%d)",
					algo, len(compressed), len(original))
			}
		})
	}
}

func TestStreamingRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("streaming row block payload "), 500)

	for _, algo := range Algorithms() {
		t.Run(string(algo), func(t *testing.T) {
			compressor, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
			if err != nil {
				t.Fatalf("Failed to create compressor: %v", err)
			}

			var compressed bytes.Buffer
			w, err := compressor.NewWriter(&compressed)
			if err != nil {
				t.Fatalf("Failed to create stream writer: %v", err)
			}
			if _, err := w.Write(original); err != nil {
				t.Fatalf("Failed to write: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Failed to close writer: %v", err)
			}

			r, err := compressor.NewReader(bytes.NewReader(compressed.Bytes()))
			if err != nil {
				t.Fatalf("Failed to create stream reader: %v", err)
			}
			var decompressed bytes.Buffer
			if _, err := decompressed.ReadFrom(r); err != nil {
				t.Fatalf("Failed to read stream: %v", err)
			}
			if err := r.Close(); err != nil {
				t.Fatalf("Failed to close reader: %v", err)
			}

			if !bytes.Equal(original, decompressed.Bytes()) {
				t.Errorf("Stream decompressed data doesn't match original")
			}
		})
	}
}

func TestCompressionLevels(t *testing.T) {
	levels := []Level{Fastest, Default, Better, Best}
	testData := bytes.Repeat([]byte("test data for compression "), 100)

	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			compressor, err := NewCompressor(&Config{Algorithm: Zstd, Level: level})
			if err != nil {
				t.Fatalf("Failed to create compressor: %v", err)
			}

			compressed, err := Compress(compressor, testData)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}

			decompressed, err := Decompress(compressor, compressed)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}

			if !bytes.Equal(testData, decompressed) {
				t.Errorf("Decompressed data doesn't match original for level %v", level)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, algo := range Algorithms() {
		parsed, err := ParseAlgorithm(string(algo))
		if err != nil {
			t.Fatalf("ParseAlgorithm(%q): %v", algo, err)
		}
		if parsed != algo {
			t.Errorf("ParseAlgorithm(%q) = %q", algo, parsed)
		}
	}

	if _, err := ParseAlgorithm("brotli"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
