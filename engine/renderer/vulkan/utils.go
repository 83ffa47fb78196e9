package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanResultIsSuccess reports whether a result counts as success per the
// Vulkan spec. Inverted results such as incomplete or suboptimal still count
// as success here.
func VulkanResultIsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset, vk.Incomplete, vk.Suboptimal:
		return true
	default:
		return false
	}
}

// VulkanSafeString null-terminates a Go string for handoff to the C API.
func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = VulkanSafeString(s)
	}
	return out
}
