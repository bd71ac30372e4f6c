package utils

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// OwnerTagKey is the EC2 tag carrying the owning user or account
const OwnerTagKey = "autopause:owner"

// AutoPauseTagKey marks instances that opted in to AutoPause supervision
const AutoPauseTagKey = "autopause:enabled"

// GetTagValue returns the value of a tag with the given key
func GetTagValue(tags []types.Tag, key string) string {
	for _, tag := range tags {
		if SafeDeref(tag.Key) == key {
			return SafeDeref(tag.Value)
		}
	}
	return ""
}

// GetName returns the value of the Name tag
func GetName(tags []types.Tag) string {
	return GetTagValue(tags, "Name")
}

// GetOwner returns the value of the owner tag
func GetOwner(tags []types.Tag) string {
	return GetTagValue(tags, OwnerTagKey)
}

// AutoPauseEnabled reports whether the instance opted in to AutoPause
func AutoPauseEnabled(tags []types.Tag) bool {
	return HasTagWithValue(tags, AutoPauseTagKey, "true")
}

// HasTagWithValue checks if a resource has a tag with the given key and value
func HasTagWithValue(tags []types.Tag, key, value string) bool {
	for _, tag := range tags {
		if tag.Key != nil && *tag.Key == key && SafeDeref(tag.Value) == value {
			return true
		}
	}
	return false
}
