package vulkan

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/platform"
	"github.com/spaghettifunk/kepler/engine/renderer"
)

// Pass is the per-frame recording handle the frame driver threads through
// the draw calls.
type Pass struct {
	CommandBuffer *VulkanCommandBuffer
	ImageIndex    uint32
}

type setKey struct {
	first  vk.Buffer
	second vk.Buffer
}

type collisionSubmission struct {
	cmd      *VulkanCommandBuffer
	fence    *VulkanFence
	readback *VulkanBuffer
}

/**
 * @brief Backend drives a real GPU through Vulkan. The window surface comes
 * from the platform layer; graphics and the collision compute dispatches
 * share one queue. Implements renderer.Backend.
 */
type Backend struct {
	platform *platform.Platform
	context  *VulkanContext
	debug    bool

	swapchain  *VulkanSwapchain
	renderPass vk.RenderPass

	planetVertModule vk.ShaderModule
	planetFragModule vk.ShaderModule
	trailVertModule  vk.ShaderModule
	collisionModule  vk.ShaderModule

	graphicsSetLayout vk.DescriptorSetLayout
	planetPipelines   map[renderer.Topology]*VulkanPipeline
	trailPipeline     *VulkanPipeline
	compute           *VulkanComputePipeline

	descriptorPool vk.DescriptorPool
	graphicsSets   map[setKey]vk.DescriptorSet
	computeSets    map[setKey]vk.DescriptorSet

	// 64-byte identity model matrix bound when a draw carries no packed
	// transforms, e.g. the world-space trail.
	identity *VulkanBuffer

	imageAvailable []vk.Semaphore
	queueComplete  []vk.Semaphore
	inFlight       []*VulkanFence
	frameCommands  []*VulkanCommandBuffer
	currentFrame   int

	collision *collisionSubmission
}

func NewBackend(p *platform.Platform) *Backend {
	return &Backend{
		platform:        p,
		context:         &VulkanContext{},
		debug:           false,
		planetPipelines: map[renderer.Topology]*VulkanPipeline{},
		graphicsSets:    map[setKey]vk.DescriptorSet{},
		computeSets:     map[setKey]vk.DescriptorSet{},
	}
}

func (b *Backend) Startup(appName string, width, height uint32, shaderDir string) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("func Startup: GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	if err := b.createInstance(appName); err != nil {
		return err
	}

	surface, err := b.platform.Window.CreateWindowSurface(b.context.Instance, nil)
	if err != nil {
		core.LogError("failed to create window surface: %s", err)
		return err
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(b.context); err != nil {
		return err
	}

	b.swapchain, err = SwapchainCreate(b.context, width, height)
	if err != nil {
		return err
	}

	b.renderPass, err = RenderPassCreate(b.context, b.swapchain.ImageFormat.Format, b.swapchain.DepthFormat)
	if err != nil {
		return err
	}
	if err := b.swapchain.CreateFramebuffers(b.context, b.renderPass); err != nil {
		return err
	}

	if err := b.createShaderModules(shaderDir); err != nil {
		return err
	}
	if err := b.createPipelines(); err != nil {
		return err
	}
	if err := b.createDescriptorPool(); err != nil {
		return err
	}
	if err := b.createIdentityBuffer(); err != nil {
		return err
	}
	if err := b.createFrameResources(); err != nil {
		return err
	}

	core.LogInfo("Vulkan backend ready.")
	return nil
}

func (b *Backend) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Kepler"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, b.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	layers := []string{}
	if b.debug {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		err := fmt.Errorf("vkCreateInstance failed with %d", res)
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan instance created.")
	return nil
}

func (b *Backend) createShaderModules(shaderDir string) error {
	var err error
	if b.planetVertModule, err = loadShaderModule(b.context, filepath.Join(shaderDir, "planet.vert.spv")); err != nil {
		return err
	}
	if b.planetFragModule, err = loadShaderModule(b.context, filepath.Join(shaderDir, "planet.frag.spv")); err != nil {
		return err
	}
	if b.trailVertModule, err = loadShaderModule(b.context, filepath.Join(shaderDir, "trail.vert.spv")); err != nil {
		return err
	}
	if b.collisionModule, err = loadShaderModule(b.context, filepath.Join(shaderDir, "collision.comp.spv")); err != nil {
		return err
	}
	return nil
}

func (b *Backend) createPipelines() error {
	layout, err := GraphicsDescriptorSetLayoutCreate(b.context)
	if err != nil {
		return err
	}
	b.graphicsSetLayout = layout

	planetStages := []vk.PipelineShaderStageCreateInfo{
		shaderStage(b.planetVertModule, vk.ShaderStageVertexBit),
		shaderStage(b.planetFragModule, vk.ShaderStageFragmentBit),
	}
	topologies := map[renderer.Topology]vk.PrimitiveTopology{
		renderer.TopologyPointList:    vk.PrimitiveTopologyPointList,
		renderer.TopologyLineList:     vk.PrimitiveTopologyLineList,
		renderer.TopologyTriangleList: vk.PrimitiveTopologyTriangleList,
	}
	for topology, primitive := range topologies {
		pipeline, err := NewPlanetPipeline(b.context, b.renderPass, layout, planetStages, primitive, b.swapchain.Extent)
		if err != nil {
			return err
		}
		b.planetPipelines[topology] = pipeline
	}

	trailStages := []vk.PipelineShaderStageCreateInfo{
		shaderStage(b.trailVertModule, vk.ShaderStageVertexBit),
		shaderStage(b.planetFragModule, vk.ShaderStageFragmentBit),
	}
	if b.trailPipeline, err = NewTrailPipeline(b.context, b.renderPass, layout, trailStages, b.swapchain.Extent); err != nil {
		return err
	}

	if b.compute, err = NewComputePipeline(b.context, b.collisionModule); err != nil {
		return err
	}
	return nil
}

func (b *Backend) createDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 128},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 128},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 128},
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       256,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if res := vk.CreateDescriptorPool(b.context.Device.LogicalDevice, &poolCreateInfo, b.context.Allocator, &b.descriptorPool); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorPool failed")
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (b *Backend) createIdentityBuffer() error {
	identity, err := NewVulkanBuffer(b.context, renderer.BufferKindUniform, renderer.Mat4ByteSize)
	if err != nil {
		return err
	}
	data := make([]byte, renderer.Mat4ByteSize)
	// Column-major identity: 1.0f at diagonal word offsets 0, 5, 10, 15.
	for _, word := range []int{0, 5, 10, 15} {
		data[word*4+2] = 0x80
		data[word*4+3] = 0x3f
	}
	if err := identity.LoadRange(0, data); err != nil {
		identity.Destroy()
		return err
	}
	b.identity = identity
	return nil
}

func (b *Backend) createFrameResources() error {
	frames := int(b.swapchain.MaxFramesInFlight)
	b.imageAvailable = make([]vk.Semaphore, frames)
	b.queueComplete = make([]vk.Semaphore, frames)
	b.inFlight = make([]*VulkanFence, frames)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for i := 0; i < frames; i++ {
		if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &b.imageAvailable[i]); res != vk.Success {
			return fmt.Errorf("failed to create image-available semaphore %d", i)
		}
		if res := vk.CreateSemaphore(b.context.Device.LogicalDevice, &semaphoreCreateInfo, b.context.Allocator, &b.queueComplete[i]); res != vk.Success {
			return fmt.Errorf("failed to create queue-complete semaphore %d", i)
		}
		fence, err := NewFence(b.context, true)
		if err != nil {
			return err
		}
		b.inFlight[i] = fence
	}

	b.frameCommands = make([]*VulkanCommandBuffer, len(b.swapchain.Images))
	for i := range b.frameCommands {
		cmd, err := NewVulkanCommandBuffer(b.context, b.context.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		b.frameCommands[i] = cmd
	}
	return nil
}

func (b *Backend) MinUniformAlignment() uint64 {
	return b.context.Device.MinUniformAlignment()
}

func (b *Backend) BufferCreate(kind renderer.BufferKind, size uint64) (renderer.Buffer, error) {
	return NewVulkanBuffer(b.context, kind, size)
}

func (b *Backend) BufferLoadRange(buffer renderer.Buffer, offset uint64, data []byte) error {
	vb, ok := buffer.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func BufferLoadRange: buffer does not belong to this backend")
	}
	return vb.LoadRange(offset, data)
}

/**
 * @brief Begins the frame: waits out the frame's previous submission,
 * acquires a swapchain image and opens the scene render pass on the image's
 * command buffer.
 */
func (b *Backend) FrameBegin() (renderer.RenderPass, error) {
	fence := b.inFlight[b.currentFrame]
	if !fence.Wait(b.context, ^uint64(0)) {
		return nil, fmt.Errorf("func FrameBegin: in-flight fence wait failed")
	}
	if err := fence.Reset(b.context); err != nil {
		return nil, err
	}

	imageIndex, err := b.swapchain.AcquireNextImageIndex(b.context, ^uint64(0), b.imageAvailable[b.currentFrame])
	if err != nil {
		return nil, err
	}

	cmd := b.frameCommands[imageIndex]
	if err := cmd.Begin(false); err != nil {
		return nil, err
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{0.01, 0.01, 0.03, 1.0})
	clearValues[1].SetDepthStencil(1.0, 0)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.renderPass,
		Framebuffer: b.swapchain.Framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Extent: b.swapchain.Extent,
		},
		ClearValueCount: 2,
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd.Handle, &beginInfo, vk.SubpassContentsInline)

	return &Pass{CommandBuffer: cmd, ImageIndex: imageIndex}, nil
}

// FrameEnd closes the pass, submits it and presents the image.
func (b *Backend) FrameEnd(pass renderer.RenderPass) error {
	p, ok := pass.(*Pass)
	if !ok {
		return fmt.Errorf("func FrameEnd: pass does not belong to this backend")
	}

	vk.CmdEndRenderPass(p.CommandBuffer.Handle)
	if err := p.CommandBuffer.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.imageAvailable[b.currentFrame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{p.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.queueComplete[b.currentFrame]},
	}
	if res := vk.QueueSubmit(b.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, b.inFlight[b.currentFrame].Handle); res != vk.Success {
		err := fmt.Errorf("vkQueueSubmit failed with %d", res)
		core.LogError(err.Error())
		return err
	}

	if err := b.swapchain.Present(b.context, b.context.Device.GraphicsQueue, b.queueComplete[b.currentFrame], p.ImageIndex); err != nil {
		return err
	}
	b.currentFrame = (b.currentFrame + 1) % int(b.swapchain.MaxFramesInFlight)
	return nil
}

func (b *Backend) GeometryDraw(pass renderer.RenderPass, topology renderer.Topology, vertexBuffer, indexBuffer renderer.Buffer, indexCount uint32, viewProjection, transforms renderer.Buffer, dynamicOffset uint32) error {
	p, ok := pass.(*Pass)
	if !ok {
		return fmt.Errorf("func GeometryDraw: pass does not belong to this backend")
	}
	vb, ok := vertexBuffer.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func GeometryDraw: vertex buffer does not belong to this backend")
	}
	vp, ok := viewProjection.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func GeometryDraw: view-projection buffer does not belong to this backend")
	}

	// Draws without an index list and packed transforms are world-space trail
	// points; everything else goes through a planet topology pipeline.
	pipeline := b.planetPipelines[topology]
	model := b.identity
	if transforms != nil {
		mb, ok := transforms.(*VulkanBuffer)
		if !ok {
			return fmt.Errorf("func GeometryDraw: transform buffer does not belong to this backend")
		}
		model = mb
	} else if indexBuffer == nil {
		pipeline = b.trailPipeline
	}
	if pipeline == nil {
		return fmt.Errorf("func GeometryDraw: no pipeline for topology %d", topology)
	}

	set, err := b.graphicsSet(vp, model)
	if err != nil {
		return err
	}

	cmd := p.CommandBuffer.Handle
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline.Handle)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, pipeline.Layout, 0, 1, []vk.DescriptorSet{set}, 1, []uint32{dynamicOffset})
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{0})

	if indexBuffer != nil {
		ib, ok := indexBuffer.(*VulkanBuffer)
		if !ok {
			return fmt.Errorf("func GeometryDraw: index buffer does not belong to this backend")
		}
		vk.CmdBindIndexBuffer(cmd, ib.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(cmd, indexCount, 1, 0, 0, 0)
	} else {
		vk.CmdDraw(cmd, indexCount, 1, 0, 0)
	}
	return nil
}

func (b *Backend) CollisionPassSubmit(input renderer.Buffer, candidateCount, groupCount uint32, output, readback renderer.Buffer) error {
	in, ok := input.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: input buffer does not belong to this backend")
	}
	out, ok := output.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: output buffer does not belong to this backend")
	}
	rb, ok := readback.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("func CollisionPassSubmit: readback buffer does not belong to this backend")
	}
	if rb.TotalSize < out.TotalSize {
		return fmt.Errorf("func CollisionPassSubmit: readback buffer smaller than output buffer")
	}

	// An abandoned in-flight submission is drained here so its command
	// buffer and fence can be reclaimed.
	if err := b.CollisionDiscard(); err != nil {
		return err
	}

	set, err := b.computeSet(in, out)
	if err != nil {
		return err
	}

	cmd, err := NewVulkanCommandBuffer(b.context, b.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := cmd.Begin(true); err != nil {
		cmd.Free(b.context, b.context.Device.GraphicsCommandPool)
		return err
	}
	b.compute.RecordCollisionPass(cmd, set, candidateCount, groupCount, out, rb)
	if err := cmd.End(); err != nil {
		cmd.Free(b.context, b.context.Device.GraphicsCommandPool)
		return err
	}

	fence, err := NewFence(b.context, false)
	if err != nil {
		cmd.Free(b.context, b.context.Device.GraphicsCommandPool)
		return err
	}
	if err := cmd.Submit(b.context.Device.GraphicsQueue, fence.Handle); err != nil {
		fence.Destroy(b.context)
		cmd.Free(b.context, b.context.Device.GraphicsCommandPool)
		return err
	}

	b.collision = &collisionSubmission{cmd: cmd, fence: fence, readback: rb}
	return nil
}

func (b *Backend) ReadbackPoll(readback renderer.Buffer) ([]byte, bool, error) {
	rb, ok := readback.(*VulkanBuffer)
	if !ok {
		return nil, false, fmt.Errorf("func ReadbackPoll: readback buffer does not belong to this backend")
	}
	if b.collision == nil || b.collision.readback != rb {
		return nil, false, nil
	}
	if !b.collision.fence.Signaled(b.context) {
		return nil, false, nil
	}

	data, err := rb.Read(0, rb.TotalSize)
	b.releaseCollision()
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// CollisionDiscard waits out any in-flight collision submission and drops its
// results, so the buffers it references become safe to destroy.
func (b *Backend) CollisionDiscard() error {
	if b.collision == nil {
		return nil
	}
	if !b.collision.fence.Wait(b.context, ^uint64(0)) {
		return fmt.Errorf("func CollisionDiscard: fence wait failed")
	}
	b.releaseCollision()
	return nil
}

func (b *Backend) releaseCollision() {
	if b.collision == nil {
		return
	}
	b.collision.fence.Destroy(b.context)
	b.collision.cmd.Free(b.context, b.context.Device.GraphicsCommandPool)
	b.collision = nil
}

func (b *Backend) graphicsSet(viewProjection, model *VulkanBuffer) (vk.DescriptorSet, error) {
	key := setKey{first: viewProjection.Handle, second: model.Handle}
	if set, ok := b.graphicsSets[key]; ok {
		return set, nil
	}
	set, err := b.allocateSet(b.graphicsSetLayout)
	if err != nil {
		return vk.NullDescriptorSet, err
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: viewProjection.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(renderer.Mat4ByteSize),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: model.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(renderer.Mat4ByteSize),
			}},
		},
	}
	vk.UpdateDescriptorSets(b.context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	b.graphicsSets[key] = set
	return set, nil
}

func (b *Backend) computeSet(input, output *VulkanBuffer) (vk.DescriptorSet, error) {
	key := setKey{first: input.Handle, second: output.Handle}
	if set, ok := b.computeSets[key]; ok {
		return set, nil
	}
	set, err := b.allocateSet(b.compute.DescriptorSetLayout)
	if err != nil {
		return vk.NullDescriptorSet, err
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: input.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      1,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeStorageBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: output.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		},
	}
	vk.UpdateDescriptorSets(b.context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	b.computeSets[key] = set
	return set, nil
}

/**
 * @brief Allocates one descriptor set, recycling the whole pool when it runs
 * dry. Cached sets keyed by destroyed buffers go stale as systems recreate
 * their buffers; the reset drops them all and lets live pairs re-allocate.
 */
func (b *Backend) allocateSet(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     b.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(b.context.Device.LogicalDevice, &allocateInfo, &set)
	if res == vk.ErrorOutOfPoolMemory || res == vk.ErrorFragmentedPool {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
		vk.ResetDescriptorPool(b.context.Device.LogicalDevice, b.descriptorPool, 0)
		b.graphicsSets = map[setKey]vk.DescriptorSet{}
		b.computeSets = map[setKey]vk.DescriptorSet{}
		res = vk.AllocateDescriptorSets(b.context.Device.LogicalDevice, &allocateInfo, &set)
	}
	if res != vk.Success {
		err := fmt.Errorf("vkAllocateDescriptorSets failed with %d", res)
		core.LogError(err.Error())
		return vk.NullDescriptorSet, err
	}
	return set, nil
}

func (b *Backend) Shutdown() error {
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		return nil
	}
	vk.DeviceWaitIdle(b.context.Device.LogicalDevice)

	b.releaseCollision()

	if b.identity != nil {
		b.identity.Destroy()
		b.identity = nil
	}
	for _, fence := range b.inFlight {
		fence.Destroy(b.context)
	}
	for _, semaphore := range b.imageAvailable {
		vk.DestroySemaphore(b.context.Device.LogicalDevice, semaphore, b.context.Allocator)
	}
	for _, semaphore := range b.queueComplete {
		vk.DestroySemaphore(b.context.Device.LogicalDevice, semaphore, b.context.Allocator)
	}

	if b.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(b.context.Device.LogicalDevice, b.descriptorPool, b.context.Allocator)
		b.descriptorPool = vk.NullDescriptorPool
	}
	if b.compute != nil {
		b.compute.Destroy(b.context)
	}
	if b.trailPipeline != nil {
		b.trailPipeline.Destroy(b.context)
	}
	for _, pipeline := range b.planetPipelines {
		pipeline.Destroy(b.context)
	}
	if b.graphicsSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(b.context.Device.LogicalDevice, b.graphicsSetLayout, b.context.Allocator)
	}
	for _, module := range []vk.ShaderModule{b.planetVertModule, b.planetFragModule, b.trailVertModule, b.collisionModule} {
		if module != vk.NullShaderModule {
			vk.DestroyShaderModule(b.context.Device.LogicalDevice, module, b.context.Allocator)
		}
	}
	if b.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(b.context.Device.LogicalDevice, b.renderPass, b.context.Allocator)
	}
	if b.swapchain != nil {
		b.swapchain.Destroy(b.context)
	}
	DeviceDestroy(b.context)
	if b.context.Surface != vk.NullSurface {
		vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
	}
	vk.DestroyInstance(b.context.Instance, b.context.Allocator)
	core.LogInfo("Vulkan backend shut down.")
	return nil
}
