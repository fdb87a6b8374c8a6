package dirblockcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// BlockHashResult is the outcome of hashing one byte stream
type BlockHashResult struct {
	Digest    string   // whole-stream digest, unpadded base64
	Checksums []uint32 // one checksum per block, in stream order
	Size      uint64   // bytes read
}

// HashBlocks reads r in chunks of exactly blockSize bytes (the last one may be short).
// Every chunk is fed to the running digest and gets its own block checksum.
// ctx is checked between chunks; a cancelled context yields ErrCancelled.
func HashBlocks(ctx context.Context, r io.Reader, blockSize int, algs Algorithms) (*BlockHashResult, error) {
	if err := ValidateBlockSize(blockSize); err != nil {
		return nil, err
	}
	if algs.Hash == nil || algs.Checksum == nil {
		algs = fillAlgorithms(algs)
	}

	hasher := algs.Hash.NewFunc()
	buffer := make([]byte, blockSize)
	result := &BlockHashResult{Checksums: make([]uint32, 0)}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		default:
		}

		n, err := io.ReadFull(r, buffer)
		if n > 0 {
			block := buffer[:n]
			hasher.Write(block)
			result.Checksums = append(result.Checksums, algs.Checksum.Sum(block))
			result.Size += uint64(n)
		}

		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	result.Digest = EncodeDigest(hasher.Sum(nil))
	return result, nil
}

func fillAlgorithms(algs Algorithms) Algorithms {
	def := DefaultAlgorithms()
	if algs.Hash == nil {
		algs.Hash = def.Hash
	}
	if algs.Checksum == nil {
		algs.Checksum = def.Checksum
	}
	return algs
}

// HashFileBlocks opens filePath and hashes it with HashBlocks.
// Open and read failures come back as *FileReadError.
func HashFileBlocks(ctx context.Context, filePath string, blockSize int, algs Algorithms) (*BlockHashResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &FileReadError{Path: filePath, Err: err}
	}
	defer file.Close()

	// Advisory only, some filesystems reject it.
	if err := unix.Fadvise(int(file.Fd()), 0, 0, unix.FADV_SEQUENTIAL); err != nil && IsDebugEnabled("hash") {
		VerboseLog(3, "fadvise %s: %v", filePath, err)
	}

	result, err := HashBlocks(ctx, file, blockSize, algs)
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, ErrInvalidBlockSize) {
			return nil, err
		}
		return nil, &FileReadError{Path: filePath, Err: err}
	}

	if IsDebugEnabled("hash") {
		VerboseLog(2, "hashed %s: %d bytes, %d blocks", filePath, result.Size, len(result.Checksums))
	}
	return result, nil
}

// BlockCount returns ceil(size / blockSize)
func BlockCount(size uint64, blockSize int) int {
	if blockSize <= 0 {
		return 0
	}
	bs := uint64(blockSize)
	count := size / bs
	if size%bs != 0 {
		count++
	}
	return int(count)
}
