package catalog

import (
	"fmt"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

// Global index names, fixed at bootstrap (spec §3.2).
const (
	IndexUsers           = "users"
	IndexBucketInstances = "bucket-instances"
	IndexBucketHeaders   = "bucket-headers"
	IndexAccessKeys      = "access-keys"
	IndexEmails          = "emails"
)

// TenantBucketKey returns the key used for a bucket in the global
// bucket-instances index: "<tenant>$<bucket>", or just "<bucket>" if
// tenant is empty (spec §3.2).
func TenantBucketKey(tenant, bucket string) string {
	if tenant == "" {
		return bucket
	}
	return tenant + "$" + bucket
}

// UserInfoIndex names the per-user index of owned buckets (spec §3.3).
func UserInfoIndex(userID string) string {
	return "user-info." + userID
}

// UserStatsIndex names the per-user index of per-bucket stats headers
// (spec §3.3).
func UserStatsIndex(userID string) string {
	return "user-stats." + userID
}

// BucketIndexName names a bucket's object index (spec §3.3).
func BucketIndexName(tenantBucket string) string {
	return "bucket-index." + tenantBucket
}

// MultipartsInProgressIndex names a bucket's in-progress multipart upload
// index (spec §3.3).
func MultipartsInProgressIndex(tenantBucket string) string {
	return "bucket." + tenantBucket + ".multiparts.in-progress"
}

// MultipartsIndex names a bucket's completed-part index (spec §3.3).
func MultipartsIndex(tenantBucket string) string {
	return "bucket." + tenantBucket + ".multiparts"
}

// ObjectKey builds the bucket-index primary key for (name, instance): the
// name, the reserved separator byte, and the version instance (spec §3.5).
// The null-version key uses the empty instance, so the key ends in the
// separator.
func ObjectKey(name, instance string) []byte {
	key := make([]byte, 0, len(name)+1+len(instance))
	key = append(key, name...)
	key = append(key, idgen.Separator)
	key = append(key, instance...)
	return key
}

// MultipartInProgressKey builds the multiparts.in-progress key for an
// object name and upload ID (spec §3.3).
func MultipartInProgressKey(name, uploadID string) []byte {
	return []byte(name + "." + uploadID)
}

// MultipartPartKey builds the multiparts key for an object name, upload
// ID, and (1-based) part number, zero-padded so parts sort numerically
// within an upload (spec §3.3).
func MultipartPartKey(name, uploadID string, partNum int) []byte {
	return []byte(fmt.Sprintf("%s.%s.%05d", name, uploadID, partNum))
}
