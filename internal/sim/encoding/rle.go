package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes samples into base64(varint pairs).
// The pairs are (value, run_len) repeated.
func EncodeRLE(samples []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(samples) {
		v := samples[i]
		run := 1
		for j := i + 1; j < len(samples) && samples[j] == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return decodePairs(raw, func(out []uint16, v uint64) ([]uint16, error) {
		if v > 0xFFFF {
			return nil, fmt.Errorf("sample too large: %d", v)
		}
		return append(out, uint16(v)), nil
	})
}

// EncodeHeights encodes a row-major height tile. Each sample is stored as the
// zigzag difference to its predecessor, then the differences are run-length
// packed like EncodeRLE. Smooth slopes collapse into a few runs.
func EncodeHeights(samples []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	prev := 0
	i := 0
	for i < len(samples) {
		d := int(samples[i]) - prev
		run := 1
		last := int(samples[i])
		for j := i + 1; j < len(samples) && int(samples[j])-last == d && run < 1<<31; j++ {
			last = int(samples[j])
			run++
		}

		n := binary.PutUvarint(tmp[:], zigzag(d))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		prev = last
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeHeights(b64 string) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	prev := 0
	return decodePairs(raw, func(out []uint16, v uint64) ([]uint16, error) {
		s := prev + unzigzag(v)
		if s < 0 || s > 0xFFFF {
			return nil, fmt.Errorf("sample out of range: %d", s)
		}
		prev = s
		return append(out, uint16(s)), nil
	})
}

func decodePairs(raw []byte, emit func([]uint16, uint64) ([]uint16, error)) ([]uint16, error) {
	var out []uint16
	var err error
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if run == 0 || run > 1<<31 {
			return nil, fmt.Errorf("bad run length %d", run)
		}
		for k := uint64(0); k < run; k++ {
			if out, err = emit(out, v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func zigzag(d int) uint64 {
	return uint64((d << 1) ^ (d >> 63))
}

func unzigzag(u uint64) int {
	return int(u>>1) ^ -int(u&1)
}

// Tile encodings.
const (
	TileRLE   = "rle"
	TileDelta = "delta"
)

// EncodeTile picks the shorter of the plain and delta run-length forms.
func EncodeTile(samples []uint16) (enc, data string) {
	plain := EncodeRLE(samples)
	delta := EncodeHeights(samples)
	if len(plain) <= len(delta) {
		return TileRLE, plain
	}
	return TileDelta, delta
}

func DecodeTile(enc, data string) ([]uint16, error) {
	switch enc {
	case TileRLE:
		return DecodeRLE(data)
	case TileDelta, "":
		return DecodeHeights(data)
	}
	return nil, fmt.Errorf("unknown tile encoding %q", enc)
}
