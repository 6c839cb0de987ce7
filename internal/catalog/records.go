package catalog

import (
	"time"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

// DirEntry flag bits (spec §3.4).
const (
	FlagVersioned    uint32 = 1 << 0 // VER: record belongs to a versioned bucket
	FlagCurrent      uint32 = 1 << 1 // CURRENT: latest live version
	FlagDeleteMarker uint32 = 1 << 2 // DELETE_MARKER
)

// Category distinguishes ordinary object entries from multipart-upload
// bookkeeping entries within the same bucket index.
type Category string

const (
	CategoryMain      Category = "main"
	CategoryMultiMeta Category = "multimeta"
)

const (
	userRecordStructVersion = 1
	userRecordCompatVersion = 1
)

// UserRecord is the persisted form of a user (spec §3.4).
type UserRecord struct {
	UserID     string            `json:"user_id"`
	Info       []byte            `json:"info"`
	Version    uint64            `json:"version"`
	Tag        string            `json:"tag"`
	Attributes map[string]string `json:"attributes"`
}

func EncodeUserRecord(r *UserRecord) ([]byte, error) {
	return encodeEnvelope(userRecordStructVersion, userRecordCompatVersion, r)
}

func DecodeUserRecord(buf []byte) (*UserRecord, error) {
	var r UserRecord
	if err := decodeEnvelope(buf, userRecordCompatVersion, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

const (
	accessKeyRecordStructVersion = 1
	accessKeyRecordCompatVersion = 1
)

// AccessKeyRecord is the value stored in the access-keys global index
// (spec §3.2): `{user-id, secret}`.
type AccessKeyRecord struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

func EncodeAccessKeyRecord(r *AccessKeyRecord) ([]byte, error) {
	return encodeEnvelope(accessKeyRecordStructVersion, accessKeyRecordCompatVersion, r)
}

func DecodeAccessKeyRecord(buf []byte) (*AccessKeyRecord, error) {
	var r AccessKeyRecord
	if err := decodeEnvelope(buf, accessKeyRecordCompatVersion, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

const (
	bucketEntryStructVersion = 1
	bucketEntryCompatVersion = 1
)

// BucketEntry is the value stored in a user-info.<user-id> index (spec
// §3.3): a lightweight pointer at one bucket a user owns, kept distinct
// from the bucket's own BucketRecord so listing a user's buckets never
// needs to touch bucket-instances.
type BucketEntry struct {
	Bucket string    `json:"bucket"`
	Size   int64     `json:"size"`
	Ctime  time.Time `json:"ctime"`
}

func EncodeBucketEntry(e *BucketEntry) ([]byte, error) {
	return encodeEnvelope(bucketEntryStructVersion, bucketEntryCompatVersion, e)
}

func DecodeBucketEntry(buf []byte) (*BucketEntry, error) {
	var e BucketEntry
	if err := decodeEnvelope(buf, bucketEntryCompatVersion, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

const (
	bucketRecordStructVersion = 1
	bucketRecordCompatVersion = 1
)

// BucketRecord is the persisted form of a bucket (spec §3.4).
type BucketRecord struct {
	Tenant        string            `json:"tenant"`
	Bucket        string            `json:"bucket"`
	Owner         string            `json:"owner"`
	PlacementRule string            `json:"placement_rule"`
	Attributes    map[string]string `json:"attributes"`
	Mtime         time.Time         `json:"mtime"`
	Version       uint64            `json:"version"`
	Versioned     bool              `json:"versioned"`
	Suspended     bool              `json:"suspended"` // versioning suspended, not removed
}

func EncodeBucketRecord(r *BucketRecord) ([]byte, error) {
	return encodeEnvelope(bucketRecordStructVersion, bucketRecordCompatVersion, r)
}

func DecodeBucketRecord(buf []byte) (*BucketRecord, error) {
	var r BucketRecord
	if err := decodeEnvelope(buf, bucketRecordCompatVersion, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

const (
	objectMetaStructVersion = 1
	objectMetaCompatVersion = 1
)

// ObjectMeta is the catalog-level record of where an object's bytes live
// (spec §3.4). Distinct from objstore.ObjectMeta, which additionally
// carries the live Layer handles needed to drive reads/writes; this is the
// persisted, layer-handle-free form stored in a DirEntry.
//
// UploadID is set only on a completed separate-strategy multipart object:
// such an object has no single byte container of its own (ObjectID stays
// zero), so this is the discriminator the multipart engine's Read uses to
// find the upload's part records (spec §4.6.5).
type ObjectMeta struct {
	ObjectID         idgen.ID `json:"object_id"`
	PlacementVersion uint64   `json:"placement_version"`
	LayoutID         uint32   `json:"layout_id"`
	IsComposite      bool     `json:"is_composite"`
	TopLayerID       idgen.ID `json:"top_layer_id,omitempty"`
	UploadID         string   `json:"upload_id,omitempty"`
}

func EncodeObjectMeta(m *ObjectMeta) ([]byte, error) {
	return encodeEnvelope(objectMetaStructVersion, objectMetaCompatVersion, m)
}

func DecodeObjectMeta(buf []byte) (*ObjectMeta, error) {
	var m ObjectMeta
	if err := decodeEnvelope(buf, objectMetaCompatVersion, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

const (
	dirEntryStructVersion = 1
	dirEntryCompatVersion = 1
)

// DirEntry is one version of one object key in a bucket index (spec §3.4).
// Attrs carries the user-metadata/tagging map spec §3.3 describes as living
// alongside the DirEntry proper ("values: DirEntry + attrs + ObjectMeta").
type DirEntry struct {
	Name     string            `json:"name"`
	Instance string            `json:"instance"` // "" for the null version
	Mtime    time.Time         `json:"mtime"`
	Size     int64             `json:"size"`
	Etag     string            `json:"etag"`
	Owner    string            `json:"owner"`
	Category Category          `json:"category"`
	Flags    uint32            `json:"flags"`
	Meta     ObjectMeta        `json:"meta"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// IsCurrent reports whether this entry carries the CURRENT flag.
func (e *DirEntry) IsCurrent() bool { return e.Flags&FlagCurrent != 0 }

// IsDeleteMarker reports whether this entry is a delete marker.
func (e *DirEntry) IsDeleteMarker() bool { return e.Flags&FlagDeleteMarker != 0 }

func EncodeDirEntry(e *DirEntry) ([]byte, error) {
	return encodeEnvelope(dirEntryStructVersion, dirEntryCompatVersion, e)
}

func DecodeDirEntry(buf []byte) (*DirEntry, error) {
	var e DirEntry
	if err := decodeEnvelope(buf, dirEntryCompatVersion, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

const (
	partInfoStructVersion = 1
	partInfoCompatVersion = 1
)

// PartInfo is one uploaded part of a multipart upload (spec §3.4). Attrs
// carries the same "+attrs" half of §3.3's "PartInfo + attrs + ObjectMeta"
// this package's DirEntry.Attrs carries for ordinary objects.
type PartInfo struct {
	Num            int               `json:"num"`
	Etag           string            `json:"etag"`
	Size           int64             `json:"size"`
	RoundedSize    int64             `json:"rounded_size"`
	AccountedSize  int64             `json:"accounted_size"`
	Mtime          time.Time         `json:"mtime"`
	CompressedType string            `json:"compressed_type,omitempty"`
	Meta           ObjectMeta        `json:"meta"`
	Attrs          map[string]string `json:"attrs,omitempty"`
}

func EncodePartInfo(p *PartInfo) ([]byte, error) {
	return encodeEnvelope(partInfoStructVersion, partInfoCompatVersion, p)
}

func DecodePartInfo(buf []byte) (*PartInfo, error) {
	var p PartInfo
	if err := decodeEnvelope(buf, partInfoCompatVersion, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

const (
	multipartUploadStructVersion = 1
	multipartUploadCompatVersion = 1
)

// MultipartUpload is the in-progress record value of spec §3.3's
// `multiparts.in-progress` index (§4.6.1 step 4): `{placement-rule,
// upload-id, tiered?, ObjectMeta}` plus the initial DirEntry and the
// request's tag attributes.
type MultipartUpload struct {
	Name          string            `json:"name"`
	UploadID      string            `json:"upload_id"`
	PlacementRule string            `json:"placement_rule"`
	Tiered        bool              `json:"tiered"`
	Owner         string            `json:"owner"`
	Ctime         time.Time         `json:"ctime"`
	Meta          ObjectMeta        `json:"meta"`
	Attrs         map[string]string `json:"attrs,omitempty"`
}

func EncodeMultipartUpload(u *MultipartUpload) ([]byte, error) {
	return encodeEnvelope(multipartUploadStructVersion, multipartUploadCompatVersion, u)
}

func DecodeMultipartUpload(buf []byte) (*MultipartUpload, error) {
	var u MultipartUpload
	if err := decodeEnvelope(buf, multipartUploadCompatVersion, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

const (
	bucketHeaderStructVersion = 1
	bucketHeaderCompatVersion = 1
)

// CategoryStats holds the per-category counters a BucketHeader aggregates
// (spec §3.4).
type CategoryStats struct {
	NumEntries int64 `json:"num_entries"`
	TotalSize  int64 `json:"total_size"`  // sum of raw object sizes
	ActualSize int64 `json:"actual_size"` // sum of layout-rounded sizes
}

// BucketHeader is the per-bucket stats record in user-stats.<user-id>
// (spec §3.4).
type BucketHeader struct {
	Bucket string                   `json:"bucket"`
	Stats  map[Category]CategoryStats `json:"stats"`
}

func EncodeBucketHeader(h *BucketHeader) ([]byte, error) {
	return encodeEnvelope(bucketHeaderStructVersion, bucketHeaderCompatVersion, h)
}

func DecodeBucketHeader(buf []byte) (*BucketHeader, error) {
	var h BucketHeader
	if err := decodeEnvelope(buf, bucketHeaderCompatVersion, &h); err != nil {
		return nil, err
	}
	if h.Stats == nil {
		h.Stats = make(map[Category]CategoryStats)
	}
	return &h, nil
}
