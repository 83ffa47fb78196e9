package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kepler/engine/core"
)

/**
 * @brief VulkanComputePipeline wraps the pairwise collision kernel: binding 0
 * is the candidate storage buffer, binding 1 the pair output storage buffer,
 * and the candidate count rides in a push constant.
 */
type VulkanComputePipeline struct {
	Handle              vk.Pipeline
	Layout              vk.PipelineLayout
	DescriptorSetLayout vk.DescriptorSetLayout
}

func NewComputePipeline(context *VulkanContext, module vk.ShaderModule) (*VulkanComputePipeline, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		},
	}
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	pipeline := &VulkanComputePipeline{}
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &pipeline.DescriptorSetLayout); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorSetLayout failed for the compute layout")
		core.LogError(err.Error())
		return nil, err
	}

	pushConstantRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       4,
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{pipeline.DescriptorSetLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushConstantRange},
	}
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pipeline.Layout); res != vk.Success {
		err := fmt.Errorf("vkCreatePipelineLayout failed for the compute pipeline")
		core.LogError(err.Error())
		return nil, err
	}

	computeCreateInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  shaderStage(module, vk.ShaderStageComputeBit),
		Layout: pipeline.Layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	result := vk.CreateComputePipelines(
		context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.ComputePipelineCreateInfo{computeCreateInfo},
		context.Allocator,
		pipelines)
	if !VulkanResultIsSuccess(result) {
		err := fmt.Errorf("vkCreateComputePipelines failed with %d", result)
		core.LogError(err.Error())
		return nil, err
	}
	pipeline.Handle = pipelines[0]
	return pipeline, nil
}

/**
 * @brief Records the collision command sequence into cmd: dispatch the
 * kernel, wait for its writes, copy the output into the readback buffer, then
 * clear the output for the next round. The copy-before-clear order inside one
 * submission is what lets the device-side buffer be reused immediately.
 */
func (cp *VulkanComputePipeline) RecordCollisionPass(cmd *VulkanCommandBuffer, set vk.DescriptorSet, candidateCount, groupCount uint32, output *VulkanBuffer, readback *VulkanBuffer) {
	vk.CmdBindPipeline(cmd.Handle, vk.PipelineBindPointCompute, cp.Handle)
	vk.CmdBindDescriptorSets(cmd.Handle, vk.PipelineBindPointCompute, cp.Layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

	countBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBytes, candidateCount)
	vk.CmdPushConstants(cmd.Handle, cp.Layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 4, unsafe.Pointer(&countBytes[0]))

	vk.CmdDispatch(cmd.Handle, groupCount, 1, 1)

	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit) | vk.AccessFlags(vk.AccessTransferWriteBit),
	}
	vk.CmdPipelineBarrier(cmd.Handle,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0,
		1, []vk.MemoryBarrier{barrier},
		0, nil,
		0, nil)

	copyRegion := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(output.TotalSize),
	}
	vk.CmdCopyBuffer(cmd.Handle, output.Handle, readback.Handle, 1, []vk.BufferCopy{copyRegion})
	vk.CmdFillBuffer(cmd.Handle, output.Handle, 0, vk.DeviceSize(output.TotalSize), 0)
}

func (cp *VulkanComputePipeline) Destroy(context *VulkanContext) {
	if cp.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, cp.Handle, context.Allocator)
		cp.Handle = vk.NullPipeline
	}
	if cp.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, cp.Layout, context.Allocator)
		cp.Layout = vk.NullPipelineLayout
	}
	if cp.DescriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, cp.DescriptorSetLayout, context.Allocator)
		cp.DescriptorSetLayout = vk.NullDescriptorSetLayout
	}
}
