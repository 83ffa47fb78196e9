package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

/**
 * @brief VulkanBuffer is a device buffer backed by host-visible coherent
 * memory. Host-visible memory keeps uploads and readbacks a plain map/copy
 * and is fast enough for the buffer sizes this simulation works with.
 */
type VulkanBuffer struct {
	context   *VulkanContext
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize uint64
	Kind      renderer.BufferKind
}

func usageForKind(kind renderer.BufferKind) vk.BufferUsageFlags {
	switch kind {
	case renderer.BufferKindVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case renderer.BufferKindIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case renderer.BufferKindUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case renderer.BufferKindStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
			vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) |
			vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	case renderer.BufferKindReadback:
		return vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	default:
		return vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
}

func NewVulkanBuffer(context *VulkanContext, kind renderer.BufferKind, size uint64) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("func NewVulkanBuffer: zero-sized buffer")
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usageForKind(kind),
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateBuffer failed for %d bytes", size)
		core.LogError(err.Error())
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryFlags := uint32(vk.MemoryPropertyHostVisibleBit) | uint32(vk.MemoryPropertyHostCoherentBit)
	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if memoryIndex < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("func NewVulkanBuffer: no host-visible memory type for buffer")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("vkAllocateMemory failed for %d bytes", size)
		core.LogError(err.Error())
		return nil, err
	}
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("vkBindBufferMemory failed")
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanBuffer{
		context:   context,
		Handle:    handle,
		Memory:    memory,
		TotalSize: size,
		Kind:      kind,
	}, nil
}

func (b *VulkanBuffer) Size() uint64 {
	return b.TotalSize
}

// LoadRange maps the buffer memory and copies data at offset.
func (b *VulkanBuffer) LoadRange(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.TotalSize {
		return fmt.Errorf("func LoadRange: range [%d, %d) exceeds buffer size %d", offset, offset+uint64(len(data)), b.TotalSize)
	}
	var pData unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &pData); res != vk.Success {
		err := fmt.Errorf("vkMapMemory failed")
		core.LogError(err.Error())
		return err
	}
	vk.Memcopy(pData, data)
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	return nil
}

// Read maps the buffer memory and copies size bytes out starting at offset.
func (b *VulkanBuffer) Read(offset, size uint64) ([]byte, error) {
	if offset+size > b.TotalSize {
		return nil, fmt.Errorf("func Read: range [%d, %d) exceeds buffer size %d", offset, offset+size, b.TotalSize)
	}
	var pData unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &pData); res != vk.Success {
		err := fmt.Errorf("vkMapMemory failed")
		core.LogError(err.Error())
		return nil, err
	}
	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(pData), size))
	vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
	return data, nil
}

func (b *VulkanBuffer) Destroy() {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.context.Device.LogicalDevice, b.Memory, b.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	b.TotalSize = 0
}
