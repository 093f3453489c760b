// Package gpu describes the narrow slice of a Vulkan device that the renderer core consumes:
// resource creation, memory binding, host flushes and command recording. The gpu/vulkan package
// implements it on top of vkngwrapper; tests use gpu/mocks and internal/gputest.
package gpu
