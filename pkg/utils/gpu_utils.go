package utils

import (
	"sort"
	"strings"
)

// GPUInstanceFamilies maps EC2 instance families to the GPU they carry
var GPUInstanceFamilies = map[string]string{
	"g4dn": "T4",
	"g5":   "A10G",
	"g6":   "L4",
	"p3":   "V100",
	"p4d":  "A100",
	"p5":   "H100",
}

// GetInstanceFamily returns the family prefix of an EC2 instance type ("g5.xlarge" -> "g5")
func GetInstanceFamily(instanceType string) string {
	family, _, _ := strings.Cut(instanceType, ".")
	return family
}

// GetGPUType returns the GPU model for an EC2 instance type, or "" for non-GPU types
func GetGPUType(instanceType string) string {
	return GPUInstanceFamilies[GetInstanceFamily(instanceType)]
}

// GetInstanceTypePatterns returns DescribeInstances filter values matching
// every instance type of the families that carry gpuType. An empty gpuType
// matches all GPU families.
func GetInstanceTypePatterns(gpuType string) []string {
	var patterns []string
	for family, gpu := range GPUInstanceFamilies {
		if gpuType == "" || strings.EqualFold(gpu, gpuType) {
			patterns = append(patterns, family+".*")
		}
	}
	sort.Strings(patterns)
	return patterns
}

// NormalizeGPUType upper-cases a GPU type name ("a10g" -> "A10G")
func NormalizeGPUType(gpuType string) string {
	return strings.ToUpper(strings.TrimSpace(gpuType))
}
