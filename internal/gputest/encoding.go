package gputest

import (
	"encoding/binary"

	"github.com/vkngwrapper/tilerender/gpu"
)

// DecodeIndirect reads one indirect draw command from the start of data
func DecodeIndirect(data []byte) gpu.DrawIndexedIndirectCommand {
	return gpu.DrawIndexedIndirectCommand{
		IndexCount:    binary.LittleEndian.Uint32(data[0:]),
		InstanceCount: binary.LittleEndian.Uint32(data[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(data[8:]),
		VertexOffset:  int32(binary.LittleEndian.Uint32(data[12:])),
		FirstInstance: binary.LittleEndian.Uint32(data[16:]),
	}
}
