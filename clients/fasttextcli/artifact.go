package fasttextcli

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Model artifacts open with a magic number and format version, then the
// serialized training arguments (twelve int32 fields and one float64),
// then a byte that flags a quantized input matrix. Reading that far is
// enough to validate a file and learn whether it was quantized.
const (
	artifactMagic   = 793712314
	artifactVersion = 12
	argsBlockSize   = 12*4 + 8
)

// ArtifactInfo summarizes a model artifact's header.
type ArtifactInfo struct {
	Version   int32
	Quantized bool
}

// ReadArtifactInfo validates the file's magic number and reports the
// quantization flag stored after the argument block.
func ReadArtifactInfo(path string) (ArtifactInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("could not open model artifact: %w", err)
	}
	defer f.Close()

	var header struct {
		Magic   int32
		Version int32
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return ArtifactInfo{}, fmt.Errorf("could not read model header from %s: %w", path, err)
	}
	if header.Magic != artifactMagic {
		return ArtifactInfo{}, fmt.Errorf("%s is not a fasttext model artifact", path)
	}
	if header.Version > artifactVersion {
		return ArtifactInfo{}, fmt.Errorf("%s uses unsupported model format version %d", path, header.Version)
	}

	if _, err := f.Seek(argsBlockSize, io.SeekCurrent); err != nil {
		return ArtifactInfo{}, fmt.Errorf("could not read model header from %s: %w", path, err)
	}
	var quantized bool
	if err := binary.Read(f, binary.LittleEndian, &quantized); err != nil {
		return ArtifactInfo{}, fmt.Errorf("could not read model header from %s: %w", path, err)
	}

	return ArtifactInfo{Version: header.Version, Quantized: quantized}, nil
}
