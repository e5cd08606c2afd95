package common

const (
	// ChecksumHeaderName carries the hex SHA-256 of an uploaded image body.
	ChecksumHeaderName = "X-Checksum-SHA256"

	// DeviceHeaderName identifies the uploading device on every request.
	DeviceHeaderName = "X-Device-ID"

	// ImageContentType is the media type of captured frames.
	ImageContentType = "image/jpeg"
)
