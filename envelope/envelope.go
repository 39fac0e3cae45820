package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ruteri/telemetry-envelope/cryptoutils"
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// MaxDecompressedSize bounds the decompressed size of one report. A UDP
// datagram carries at most 64KiB of ciphertext; anything inflating past
// this is not a report.
const MaxDecompressedSize = 4 << 20

// Marshal serializes a report to its JSON text form. The same serializer is
// used by Encode and by every verification tool.
func Marshal(report interfaces.Report) ([]byte, error) {
	return json.Marshal(report)
}

// Unmarshal parses the JSON text form of a report. Numbers are kept as
// json.Number so integer timestamps survive unchanged.
func Unmarshal(data []byte) (interfaces.Report, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var report interfaces.Report
	if err := decoder.Decode(&report); err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report is null")
	}
	return report, nil
}

// Encode turns a report into its wire form: JSON, gzip at best compression,
// then Seal (AES-256-CFB8 under a fresh IV, HMAC-SHA256 over iv||ciphertext).
func Encode(report interfaces.Report, keys interfaces.KeyPair) ([]byte, error) {
	serialized, err := Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}

	compressed, err := compress(serialized)
	if err != nil {
		return nil, fmt.Errorf("failed to compress report: %w", err)
	}

	return cryptoutils.Seal(keys, compressed)
}

// Decode verifies and opens an envelope. Authentication happens before any
// decryption or decompression; a bad tag yields ErrAuthentication. A payload
// that authenticates but does not decompress or parse yields ErrFormat.
func Decode(data []byte, keys interfaces.KeyPair) (interfaces.Report, error) {
	compressed, err := cryptoutils.Open(keys, data)
	if err != nil {
		return nil, err
	}

	serialized, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrFormat, err)
	}

	report, err := Unmarshal(serialized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrFormat, err)
	}

	return report, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out, err := io.ReadAll(io.LimitReader(reader, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", MaxDecompressedSize)
	}
	return out, nil
}
