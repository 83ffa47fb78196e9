package vulkan

import (
	"fmt"
	m "math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kepler/engine/core"
	"github.com/spaghettifunk/kepler/engine/math"
)

type VulkanSwapchain struct {
	Handle            vk.Swapchain
	ImageFormat       vk.SurfaceFormat
	Extent            vk.Extent2D
	MaxFramesInFlight uint8

	Images []vk.Image
	Views  []vk.ImageView

	DepthFormat vk.Format
	DepthImage  vk.Image
	DepthMemory vk.DeviceMemory
	DepthView   vk.ImageView

	Framebuffers []vk.Framebuffer
}

func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{MaxFramesInFlight: 2}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(context.Device.PhysicalDevice, context.Surface, &capabilities); res != vk.Success {
		err := fmt.Errorf("failed to query surface capabilities")
		core.LogError(err.Error())
		return nil, err
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(context.Device.PhysicalDevice, context.Surface, &formatCount, nil)
	if formatCount == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(context.Device.PhysicalDevice, context.Surface, &formatCount, formats)

	// Prefer BGRA8 sRGB-nonlinear, fall back to whatever comes first.
	formats[0].Deref()
	swapchain.ImageFormat = formats[0]
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = formats[i]
			break
		}
	}

	var presentModeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(context.Device.PhysicalDevice, context.Surface, &presentModeCount, nil)
	presentModes := make([]vk.PresentMode, presentModeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(context.Device.PhysicalDevice, context.Surface, &presentModeCount, presentModes)

	presentMode := vk.PresentModeFifo
	for _, mode := range presentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != m.MaxUint32 {
		extent = capabilities.CurrentExtent
	}
	extent.Width = math.Clamp(extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	extent.Height = math.Clamp(extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	swapchain.Extent = extent

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain")
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = handle

	var swapImageCount uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapImageCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images")
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapImageCount)
	swapchain.Views = make([]vk.ImageView, swapImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapImageCount, swapchain.Images); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images")
		core.LogError(err.Error())
		return nil, err
	}

	for i := range swapchain.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &swapchain.Views[i]); res != vk.Success {
			err := fmt.Errorf("failed to create swapchain image view %d", i)
			core.LogError(err.Error())
			return nil, err
		}
	}

	if err := swapchain.createDepthAttachment(context); err != nil {
		return nil, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images.", extent.Width, extent.Height, swapImageCount)
	return swapchain, nil
}

func detectDepthFormat(context *VulkanContext) (vk.Format, error) {
	candidates := []vk.Format{vk.FormatD32Sfloat, vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint}
	for _, format := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(context.Device.PhysicalDevice, format, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return format, nil
		}
	}
	return vk.FormatUndefined, fmt.Errorf("no supported depth format")
}

func (vs *VulkanSwapchain) createDepthAttachment(context *VulkanContext) error {
	format, err := detectDepthFormat(context)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	vs.DepthFormat = format

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  vs.Extent.Width,
			Height: vs.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &vs.DepthImage); res != vk.Success {
		err := fmt.Errorf("failed to create depth image")
		core.LogError(err.Error())
		return err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, vs.DepthImage, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		return fmt.Errorf("no device-local memory type for the depth attachment")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &vs.DepthMemory); res != vk.Success {
		err := fmt.Errorf("failed to allocate depth image memory")
		core.LogError(err.Error())
		return err
	}
	if res := vk.BindImageMemory(context.Device.LogicalDevice, vs.DepthImage, vs.DepthMemory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind depth image memory")
		core.LogError(err.Error())
		return err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vs.DepthImage,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &vs.DepthView); res != vk.Success {
		err := fmt.Errorf("failed to create depth image view")
		core.LogError(err.Error())
		return err
	}
	return nil
}

// CreateFramebuffers builds one framebuffer per swapchain image, each pairing
// the image's color view with the shared depth view.
func (vs *VulkanSwapchain) CreateFramebuffers(context *VulkanContext, renderPass vk.RenderPass) error {
	vs.Framebuffers = make([]vk.Framebuffer, len(vs.Views))
	for i, view := range vs.Views {
		attachments := []vk.ImageView{view, vs.DepthView}
		framebufferCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           vs.Extent.Width,
			Height:          vs.Extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &vs.Framebuffers[i]); res != vk.Success {
			err := fmt.Errorf("failed to create framebuffer %d", i)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

// AcquireNextImageIndex blocks up to timeoutNs for the next presentable image.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailable vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, imageAvailable, vk.NullFence, &imageIndex)
	if result != vk.Success && result != vk.Suboptimal {
		return 0, fmt.Errorf("vkAcquireNextImage failed with %d", result)
	}
	return imageIndex, nil
}

// Present returns the image to the swapchain for presentation.
func (vs *VulkanSwapchain) Present(context *VulkanContext, queue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	result := vk.QueuePresent(queue, &presentInfo)
	if result != vk.Success && result != vk.Suboptimal {
		return fmt.Errorf("vkQueuePresent failed with %d", result)
	}
	return nil
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	for _, fb := range vs.Framebuffers {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, fb, context.Allocator)
	}
	vs.Framebuffers = nil
	if vs.DepthView != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, vs.DepthView, context.Allocator)
		vs.DepthView = vk.NullImageView
	}
	if vs.DepthImage != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, vs.DepthImage, context.Allocator)
		vs.DepthImage = vk.NullImage
	}
	if vs.DepthMemory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vs.DepthMemory, context.Allocator)
		vs.DepthMemory = vk.NullDeviceMemory
	}
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
